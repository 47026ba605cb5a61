// This file defines when cached data is too old to hand out.

package expiration

import (
	"time"

	"github.com/krisalay/stalecache/types"
)

/*
Strategy decides whether an updater must refresh before answering an
ensure policy. Instead of hard-coding the rule into the updater, the
engine holds a Strategy so tests and special connections can swap it.
*/
type Strategy interface {

	// IsStale reports whether an entry with the given bookkeeping needs a
	// refresh at time now.
	IsStale(f types.Freshness, now time.Time) bool

	// OnRefresh stamps f after a completed refresh at time now.
	OnRefresh(f *types.Freshness, now time.Time)

	// Threshold is the maximum tolerated age. It is handed to remote
	// handles so they can skip their own round trips.
	Threshold() time.Duration
}

// Watermark is a cache-flush watermark. Anything refreshed before it is stale.
type Watermark interface {
	LastFlush() time.Time
}
