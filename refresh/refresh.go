// This file defines the refresh step each kind of updater performs once
// the engine has decided the cached value is stale.

package refresh

import (
	"context"
	"time"

	"github.com/krisalay/stalecache/types"
)

// Kind identifies one of the closed set of updater variants.
type Kind int

const (
	// KindValue recomputes a locally derived value.
	KindValue Kind = iota

	// KindHandle reloads a remote handle's caches in place.
	KindHandle

	// KindRecovering reloads a remote handle and replaces it when the
	// remote object is gone.
	KindRecovering

	// KindTemplate holds a value that is never refreshed.
	KindTemplate
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindHandle:
		return "handle"
	case KindRecovering:
		return "recovering"
	case KindTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// Request is what the updater hands to a Refresher.
type Request[T any] struct {
	// Policy is EnsureUpdated or EnsureAssociatorsUpdated.
	Policy types.UpdatePolicy

	// Current is the value held before the refresh.
	Current T

	// Threshold is the freshness threshold, forwarded to remote handles.
	Threshold time.Duration
}

/*
Outcome is the result of one refresh attempt.

With StatusOK, Value replaces the cached value. With StatusDeleted the
updater moves to the deleted state and keeps its last value.
*/
type Outcome[T any] struct {
	Value  T
	Status types.Status

	// Recovered is set when a replacement handle was adopted.
	Recovered bool

	// Severed is set when the held handle's object is gone and no
	// replacement exists. Value (the zero handle) replaces the cached
	// value without stamping it, so the next ensure access looks again.
	Severed bool
}

/*
Refresher is the variant-specific refresh step. The set of
implementations is closed: only the constructors in this package
produce one.

Refresh is called with the updater's lock held. It must not call back
into the same updater.
*/
type Refresher[T any] interface {
	Kind() Kind

	// SupportsAssociators reports whether EnsureAssociatorsUpdated applies.
	SupportsAssociators() bool

	Refresh(ctx context.Context, req Request[T]) (Outcome[T], error)

	sealed()
}

// Handle is the constraint for values that are remote handles. Comparable
// lets updaters tell a nil handle from a live one for both pointer and
// interface handle types.
type Handle interface {
	comparable
	types.RemoteHandle
}

// update asks h to reload the cache selected by policy.
func update[H Handle](ctx context.Context, h H, policy types.UpdatePolicy, threshold time.Duration) (types.Status, error) {
	if policy == types.EnsureAssociatorsUpdated {
		return h.UpdateAssociationCache(ctx, threshold)
	}
	return h.UpdatePropertyCache(ctx, threshold)
}
