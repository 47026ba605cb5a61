package registry

import (
	"go.uber.org/atomic"
)

/*
store holds the registered proxies keyed by object path.

Reads vastly outnumber writes: every proxy lookup reads, only discovery
and deletion write. So the map is copy-on-write:
  - readers load an immutable snapshot without locking
  - writers build a new map and swap it in

Writers must be serialized by the caller.
*/
type store[V any] struct {
	data atomic.Pointer[map[string]V]
	size atomic.Int64
}

func newStore[V any]() *store[V] {
	s := &store[V]{}
	m := make(map[string]V)
	s.data.Store(&m)
	return s
}

func (s *store[V]) get(path string) (V, bool) {
	v, ok := (*s.data.Load())[path]
	return v, ok
}

// snapshot returns the current map. It must not be modified.
func (s *store[V]) snapshot() map[string]V {
	return *s.data.Load()
}

func (s *store[V]) put(path string, v V) {
	old := *s.data.Load()

	n := make(map[string]V, len(old)+1)
	for k, e := range old {
		n[k] = e
	}
	n[path] = v

	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}

func (s *store[V]) delete(path string) {
	old := *s.data.Load()
	if _, ok := old[path]; !ok {
		return
	}

	n := make(map[string]V, len(old))
	for k, e := range old {
		if k != path {
			n[k] = e
		}
	}

	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}

func (s *store[V]) count() int {
	return int(s.size.Load())
}
