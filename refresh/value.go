package refresh

import "context"

// EmptyCollection chooses how a collection updater treats an empty,
// non-nil result.
type EmptyCollection int

const (
	// EmptyIsDeleted treats an empty collection as "no longer exists".
	// This is the legacy convention of the proxy object model.
	EmptyIsDeleted EmptyCollection = iota

	// EmptyIsValue adopts an empty collection as a normal value.
	EmptyIsValue
)

type valueRefresher[T any] struct {
	compute func() (T, bool)
}

/*
Value returns a Refresher that recomputes the value by calling compute.
A false second result means the value no longer exists; the updater is
then marked deleted and keeps its last snapshot. A panic in compute
propagates to the caller of Get.
*/
func Value[T any](compute func() (T, bool)) Refresher[T] {
	return &valueRefresher[T]{compute: compute}
}

/*
Collection returns a Refresher for a live collection snapshot. A nil
slice means the collection no longer exists. An empty non-nil slice is
handled according to empty.
*/
func Collection[E any](compute func() []E, empty EmptyCollection) Refresher[[]E] {
	return Value(func() ([]E, bool) {
		v := compute()
		if v == nil {
			return nil, false
		}
		if len(v) == 0 && empty == EmptyIsDeleted {
			return nil, false
		}
		return v, true
	})
}

func (r *valueRefresher[T]) Kind() Kind                { return KindValue }
func (r *valueRefresher[T]) SupportsAssociators() bool { return false }
func (r *valueRefresher[T]) sealed()                   {}

func (r *valueRefresher[T]) Refresh(_ context.Context, req Request[T]) (Outcome[T], error) {
	v, ok := r.compute()
	if !ok {
		return Outcome[T]{Value: req.Current, Status: statusDeleted}, nil
	}
	return Outcome[T]{Value: v, Status: statusOK}, nil
}
