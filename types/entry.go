package types

import "time"

// Freshness is the bookkeeping half of a CachedEntry. It is kept separate
// from the value so expiration strategies can reason about it without
// knowing the value type.
type Freshness struct {
	// Initialized is set once any value has been loaded.
	Initialized bool

	// LastRefresh is when the value was last refreshed successfully.
	// It only moves forward.
	LastRefresh time.Time

	// Deleted is sticky. Once set it is never cleared.
	Deleted bool
}

// CachedEntry is the state owned by every updater. It is not safe for
// concurrent use; the owning updater guards it with its own lock.
type CachedEntry[T any] struct {
	Value T
	Freshness
}
