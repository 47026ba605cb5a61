package refresh

import "context"

type templateRefresher[T any] struct{}

// Template returns a Refresher for values describing objects that do not
// exist remotely yet. It accepts every policy and never changes the value.
func Template[T any]() Refresher[T] {
	return templateRefresher[T]{}
}

func (templateRefresher[T]) Kind() Kind                { return KindTemplate }
func (templateRefresher[T]) SupportsAssociators() bool { return true }
func (templateRefresher[T]) sealed()                   {}

func (templateRefresher[T]) Refresh(_ context.Context, req Request[T]) (Outcome[T], error) {
	return Outcome[T]{Value: req.Current, Status: statusOK}, nil
}
