package api

import (
	"context"

	"github.com/krisalay/stalecache/types"
)

/*
DataUpdater is the PUBLIC contract a proxy object uses to read remote
derived state. Locking, staleness checks, refresh coalescing and
deletion tracking are hidden behind it.
*/
type DataUpdater[T any] interface {

	/*
		Get returns the cached value, refreshing it first when the policy
		asks for it.

		BEHAVIOR:
		---------
		1. None: return the cached value as is, whatever its age.

		2. EnsureUpdated / EnsureAssociatorsUpdated: refresh synchronously
		   when the value was never loaded, is older than the freshness
		   threshold, or predates the session's cache flush. Concurrent
		   callers share one refresh.

		3. Once deleted, the value is frozen and refreshes are no-ops.
		   Recovering handle updaters are never deleted: losing the
		   remote object without a replacement drops the handle, and the
		   next ensure access looks for a replacement again.

		ERRORS:
		-------
		- types.ErrInvalidArgument for an unrecognized policy
		- types.ErrUnsupportedOperation for associator refresh on an
		  updater without associators
		- types.ErrRemoteObjectDeleted when a recovering updater lost its
		  object and no replacement exists
		- anything else comes from the remote host unchanged
	*/
	Get(ctx context.Context, policy types.UpdatePolicy) (T, error)

	// IsDeleted reports whether the remote object was observed deleted.
	IsDeleted() bool

	/*
		Deleted returns a channel that is closed when the updater first
		observes deletion. It is never closed otherwise.
	*/
	Deleted() <-chan struct{}

	/*
		OnDeleted registers fn to run once when the updater is marked
		deleted. If it already is, fn runs immediately.
		fn runs outside the updater's lock.
	*/
	OnDeleted(fn func())

	// IsTemplate reports whether the value describes an object that does
	// not exist remotely and is therefore never refreshed.
	IsTemplate() bool
}
