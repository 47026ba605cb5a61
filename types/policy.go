package types

import (
	"fmt"
	"time"
)

const (
	// DefaultFreshnessThreshold is the maximum age of cached data before an
	// ensure policy forces a refresh.
	DefaultFreshnessThreshold = 5 * time.Second

	// DefaultProgressThreshold is used by task polling above this layer.
	DefaultProgressThreshold = 1 * time.Second
)

// UpdatePolicy tells an updater how fresh the returned value must be.
type UpdatePolicy int

const (
	// None returns the cached value without touching the remote host.
	None UpdatePolicy = iota

	// EnsureUpdated refreshes the property cache when it is stale.
	EnsureUpdated

	// EnsureAssociatorsUpdated refreshes the associated-object cache when
	// it is stale.
	EnsureAssociatorsUpdated
)

// Valid reports whether p is one of the recognized policies.
func (p UpdatePolicy) Valid() bool {
	return p == None || p == EnsureUpdated || p == EnsureAssociatorsUpdated
}

func (p UpdatePolicy) String() string {
	switch p {
	case None:
		return "None"
	case EnsureUpdated:
		return "EnsureUpdated"
	case EnsureAssociatorsUpdated:
		return "EnsureAssociatorsUpdated"
	default:
		return fmt.Sprintf("UpdatePolicy(%d)", int(p))
	}
}
