package stalecache

import (
	"context"
	"sync"
	"time"

	"github.com/krisalay/stalecache/api"
	"github.com/krisalay/stalecache/engine"
	"github.com/krisalay/stalecache/refresh"
	"github.com/krisalay/stalecache/types"
	"golang.org/x/sync/singleflight"
)

var _ api.DataUpdater[int] = (*Updater[int])(nil)

/*
Updater is a thread-safe cached view of one piece of remote derived state.

It connects:
  - the cached entry (value, freshness, deleted flag)
  - the engine (clock, staleness rule, metrics, logging)
  - the refresher (how this kind of value is reloaded)

Every proxy object owns one Updater per piece of remote state it exposes.
Updaters never share locks, so distinct proxies refresh in parallel.
*/
type Updater[T any] struct {
	// mu guards entry and listeners. It is held for the whole refresh so
	// Value, Deleted and LastRefresh always change together.
	mu    sync.Mutex
	entry types.CachedEntry[T]

	// listeners run once when the entry is first marked deleted.
	listeners []func()

	// deleted is closed at the deleted edge.
	deleted chan struct{}

	engine    *engine.Engine
	refresher refresh.Refresher[T]

	// sf coalesces concurrent ensure calls: while one refresh is in
	// flight, other callers with the same policy wait for its result
	// instead of queueing on mu.
	sf singleflight.Group
}

func newUpdater[T any](e *engine.Engine, r refresh.Refresher[T], initial T, loaded bool) *Updater[T] {
	if e == nil {
		e = engine.Default()
	}

	u := &Updater[T]{
		deleted:   make(chan struct{}),
		engine:    e.Named(r.Kind().String()),
		refresher: r,
	}

	if loaded {
		u.entry.Value = initial
		u.engine.OnRefresh(&u.entry.Freshness)
	}
	return u
}

/*
NewValueUpdater creates an empty updater for a locally derived value. The
first ensure access calls compute. A false second result from compute
marks the updater deleted.
*/
func NewValueUpdater[T any](e *engine.Engine, compute func() (T, bool)) *Updater[T] {
	var zero T
	return newUpdater(e, refresh.Value(compute), zero, false)
}

// NewSeededValueUpdater is NewValueUpdater with an already known value,
// fresh as of now.
func NewSeededValueUpdater[T any](e *engine.Engine, initial T, compute func() (T, bool)) *Updater[T] {
	return newUpdater(e, refresh.Value(compute), initial, true)
}

/*
NewCollectionUpdater creates an empty updater for a live collection
snapshot. A nil result from compute marks the updater deleted; an empty
result is handled according to empty.
*/
func NewCollectionUpdater[E any](e *engine.Engine, compute func() []E, empty refresh.EmptyCollection) *Updater[[]E] {
	return newUpdater(e, refresh.Collection(compute, empty), nil, false)
}

// NewHandleUpdater creates an updater for a remote handle that is
// refreshed in place. A nil handle is allowed and refreshes as a no-op.
func NewHandleUpdater[H refresh.Handle](e *engine.Engine, h H) *Updater[H] {
	return newUpdater(e, refresh.InPlace[H](), h, true)
}

/*
NewRecoveringHandleUpdater creates an updater for a remote handle that
can be replaced. When the held handle is nil or its remote object is
deleted, lookup is asked for a replacement before the updater gives up.
A nil h leaves the updater empty so the first ensure access runs lookup.

The updater itself is never deleted: when no replacement exists the
handle is dropped, Get fails once with *types.DeletedError, and later
ensure accesses keep asking lookup.
*/
func NewRecoveringHandleUpdater[H refresh.Handle](e *engine.Engine, h H, lookup refresh.RecoverFunc[H]) *Updater[H] {
	var zero H
	return newUpdater(e, refresh.Recovering(lookup), h, h != zero)
}

// NewTemplateUpdater creates an updater for a value describing an object
// that does not exist remotely. It is never refreshed.
func NewTemplateUpdater[T any](e *engine.Engine, v T) *Updater[T] {
	return newUpdater(e, refresh.Template[T](), v, true)
}

/*
Get returns the cached value, refreshing it first when policy requires.
*/
func (u *Updater[T]) Get(ctx context.Context, policy types.UpdatePolicy) (T, error) {
	var zero T

	if !policy.Valid() {
		return zero, &types.InvalidPolicyError{Policy: policy}
	}
	if policy == types.EnsureAssociatorsUpdated && !u.refresher.SupportsAssociators() {
		return zero, &types.UnsupportedOperationError{Policy: policy, Kind: u.refresher.Kind().String()}
	}

	if policy == types.None {
		u.mu.Lock()
		v := u.entry.Value
		u.mu.Unlock()

		u.engine.Metrics.Hit()
		return v, nil
	}

	/*
		singleflight ensures that:
		- if many goroutines ask for a stale value at once,
		  only ONE of them refreshes it
		- the others wait and get the same result
	*/
	res, err, _ := u.sf.Do(policy.String(), func() (any, error) {
		return u.refreshIfStale(ctx, policy)
	})
	if err != nil {
		return zero, err
	}

	v, _ := res.(T)
	return v, nil
}

/*
refreshIfStale runs the refresher when the entry is stale and applies the
outcome. Deletion listeners run after the lock is released.
*/
func (u *Updater[T]) refreshIfStale(ctx context.Context, policy types.UpdatePolicy) (T, error) {
	var notify []func()
	defer func() {
		for _, fn := range notify {
			fn()
		}
	}()

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.refresher.Kind() == refresh.KindTemplate || !u.engine.IsStale(u.entry.Freshness) {
		u.engine.Metrics.Hit()
		return u.entry.Value, nil
	}

	u.engine.Metrics.Refresh()
	u.engine.Logger.Debug("refreshing",
		"policy", policy.String(),
		"initialized", u.entry.Initialized,
		"age", u.age())

	out, err := u.refresher.Refresh(ctx, refresh.Request[T]{
		Policy:    policy,
		Current:   u.entry.Value,
		Threshold: u.engine.Threshold(),
	})

	if out.Severed {
		u.entry.Value = out.Value
		u.engine.Logger.Info("association severed, no replacement found", "policy", policy.String())
		var zero T
		return zero, err
	}

	if out.Status == types.StatusDeleted {
		notify = u.markDeletedLocked()
		if err != nil {
			var zero T
			return zero, err
		}
		return u.entry.Value, nil
	}

	if err != nil {
		u.engine.Logger.Warn("refresh failed", "policy", policy.String(), "error", err)
		var zero T
		return zero, err
	}

	u.entry.Value = out.Value
	u.engine.OnRefresh(&u.entry.Freshness)

	if out.Recovered {
		u.engine.Metrics.Recover()
		u.engine.Logger.Info("recovered replacement remote object", "policy", policy.String())
	}
	return u.entry.Value, nil
}

// markDeletedLocked performs the deleted edge once and hands back the
// listeners to run. Must be called with mu held.
func (u *Updater[T]) markDeletedLocked() []func() {
	if u.entry.Deleted {
		return nil
	}

	u.entry.Deleted = true
	close(u.deleted)

	u.engine.Metrics.Delete()
	u.engine.Logger.Info("remote object deleted")

	listeners := u.listeners
	u.listeners = nil
	return listeners
}

// age is only meaningful with mu held.
func (u *Updater[T]) age() time.Duration {
	if !u.entry.Initialized {
		return 0
	}
	return u.engine.Now().Sub(u.entry.LastRefresh)
}

// IsDeleted reports whether the remote object was observed deleted.
func (u *Updater[T]) IsDeleted() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.entry.Deleted
}

// Deleted returns a channel closed at the deleted edge.
func (u *Updater[T]) Deleted() <-chan struct{} {
	return u.deleted
}

// OnDeleted registers fn to run once on deletion, or runs it now if the
// updater is already deleted.
func (u *Updater[T]) OnDeleted(fn func()) {
	u.mu.Lock()
	if u.entry.Deleted {
		u.mu.Unlock()
		fn()
		return
	}
	u.listeners = append(u.listeners, fn)
	u.mu.Unlock()
}

// IsTemplate reports whether the updater holds a template value.
func (u *Updater[T]) IsTemplate() bool {
	return u.refresher.Kind() == refresh.KindTemplate
}

// Kind returns the updater variant chosen at construction.
func (u *Updater[T]) Kind() refresh.Kind {
	return u.refresher.Kind()
}

// LastRefresh returns when the value was last refreshed. The zero time
// means it never was.
func (u *Updater[T]) LastRefresh() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.entry.LastRefresh
}
