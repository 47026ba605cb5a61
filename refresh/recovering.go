package refresh

import (
	"context"
	"time"

	"github.com/krisalay/stalecache/types"
)

// RecoverFunc looks up a replacement handle for a severed association. It
// returns the zero handle when no replacement exists.
type RecoverFunc[H Handle] func(ctx context.Context, threshold time.Duration) (H, error)

type recoveringRefresher[H Handle] struct {
	lookup RecoverFunc[H]
}

/*
Recovering returns a Refresher for associations that can be severed and
re-established against a different remote object, such as a switch
port's peer connection.

The held handle is refreshed first. If it is nil, or its remote object
is gone, lookup is asked for a replacement:
  - a replacement is adopted and refreshed with the same policy
  - no replacement after a deletion severs the association: the handle
    is dropped and the refresh fails with *types.DeletedError
  - no replacement for a nil handle is a nil value and no error

A severed association never makes the updater deleted. The dropped
handle is nil, so every later ensure access goes straight to lookup and
a re-established association is picked up.
*/
func Recovering[H Handle](lookup RecoverFunc[H]) Refresher[H] {
	return &recoveringRefresher[H]{lookup: lookup}
}

func (r *recoveringRefresher[H]) Kind() Kind                { return KindRecovering }
func (r *recoveringRefresher[H]) SupportsAssociators() bool { return true }
func (r *recoveringRefresher[H]) sealed()                   {}

func (r *recoveringRefresher[H]) Refresh(ctx context.Context, req Request[H]) (Outcome[H], error) {
	var zero H
	deleted := false

	if req.Current != zero {
		status, err := update(ctx, req.Current, req.Policy, req.Threshold)
		if err != nil {
			return Outcome[H]{}, err
		}
		if status == statusOK {
			return Outcome[H]{Value: req.Current, Status: statusOK}, nil
		}
		deleted = true
	}

	replacement, err := r.lookup(ctx, req.Threshold)
	if err != nil {
		return Outcome[H]{}, err
	}

	if replacement == zero {
		if deleted {
			return Outcome[H]{Value: zero, Status: statusOK, Severed: true}, &types.DeletedError{Policy: req.Policy}
		}
		return Outcome[H]{Value: zero, Status: statusOK}, nil
	}

	status, err := update(ctx, replacement, req.Policy, req.Threshold)
	if err != nil {
		return Outcome[H]{}, err
	}
	if status == statusDeleted {
		// The replacement vanished between lookup and refresh.
		return Outcome[H]{Value: zero, Status: statusOK, Severed: true}, &types.DeletedError{Policy: req.Policy}
	}
	return Outcome[H]{Value: replacement, Status: statusOK, Recovered: true}, nil
}
