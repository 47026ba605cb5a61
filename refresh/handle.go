package refresh

import (
	"context"

	"github.com/krisalay/stalecache/types"
)

const (
	statusOK      = types.StatusOK
	statusDeleted = types.StatusDeleted
)

type handleRefresher[H Handle] struct{}

/*
InPlace returns a Refresher that asks the held handle to reload its
property or associator cache. A nil handle refreshes as a no-op.
*/
func InPlace[H Handle]() Refresher[H] {
	return handleRefresher[H]{}
}

func (handleRefresher[H]) Kind() Kind                { return KindHandle }
func (handleRefresher[H]) SupportsAssociators() bool { return true }
func (handleRefresher[H]) sealed()                   {}

func (handleRefresher[H]) Refresh(ctx context.Context, req Request[H]) (Outcome[H], error) {
	var zero H
	if req.Current == zero {
		return Outcome[H]{Value: zero, Status: statusOK}, nil
	}

	status, err := update(ctx, req.Current, req.Policy, req.Threshold)
	if err != nil {
		return Outcome[H]{}, err
	}
	return Outcome[H]{Value: req.Current, Status: status}, nil
}
