package types

import (
	"context"
	"time"
)

// Status is the outcome of asking a remote handle to reload one of its
// caches. Deletion of the remote object is an outcome, not an error.
type Status int

const (
	// StatusOK means the cache was reloaded (or was already fresh enough).
	StatusOK Status = iota

	// StatusDeleted means the remote object no longer exists.
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

/*
RemoteHandle is the contract between an updater and one object living on
the managed host.

A handle keeps two independent caches:
  - its own properties
  - the set of objects associated with it

Both reload methods take the freshness threshold so a handle that was
refreshed recently by another path may skip the round trip. Any error
returned is a transport or permission failure and is passed to the caller
unchanged. A deleted remote object is reported as StatusDeleted.
*/
type RemoteHandle interface {
	UpdatePropertyCache(ctx context.Context, threshold time.Duration) (Status, error)
	UpdateAssociationCache(ctx context.Context, threshold time.Duration) (Status, error)
}
