// Package registry keeps the live proxies of one host, keyed by object
// path, so repeated discovery hands back the same proxy instead of
// building a new one with cold caches.
//
// A proxy is dropped as soon as any of its updaters observes the remote
// object deleted. When the registry is full the least recently used
// proxy is dropped; callers still holding it can keep using it.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is used when New is given a capacity below one.
const DefaultCapacity = 1024

// Proxy is what the registry needs from a cached remote object.
type Proxy interface {
	Path() string
	IsDeleted() bool
	OnDeleted(fn func())
}

// Registry maps object paths to proxies. Lookups do not block on writers.
type Registry[P Proxy] struct {
	capacity int
	logger   *slog.Logger

	entries *store[P]

	// mu serializes writers and guards recency.
	mu      sync.Mutex
	recency *lru

	// creating coalesces GetOrAdd calls for the same path so concurrent
	// lookups build one proxy.
	creating singleflight.Group
}

// New creates a registry holding at most capacity proxies.
func New[P Proxy](capacity int, logger *slog.Logger) *Registry[P] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[P]{
		capacity: capacity,
		logger:   logger.With("component", "registry"),
		entries:  newStore[P](),
		recency:  newLRU(),
	}
}

/*
Add registers p under its path, replacing any proxy already there.
A proxy that is already deleted is not registered and Add returns false.
*/
func (r *Registry[P]) Add(p P) bool {
	if p.IsDeleted() {
		return false
	}
	path := p.Path()

	r.mu.Lock()
	r.entries.put(path, p)
	r.recency.touch(path)
	for r.entries.count() > r.capacity {
		victim := r.recency.evict()
		if victim == "" {
			break
		}
		r.entries.delete(victim)
		r.logger.Debug("evicted proxy", "path", victim)
	}
	r.mu.Unlock()

	// Registered outside mu: OnDeleted runs fn inline when p is already
	// deleted.
	p.OnDeleted(func() { r.drop(path, p) })
	return true
}

// Get returns the proxy registered at path.
func (r *Registry[P]) Get(path string) (P, bool) {
	p, ok := r.entries.get(path)
	if !ok {
		return p, false
	}

	r.mu.Lock()
	if _, still := r.recency.nodes[path]; still {
		r.recency.touch(path)
	}
	r.mu.Unlock()
	return p, true
}

/*
GetOrAdd returns the proxy at path, or registers the one built by
create. create is not called when a live proxy is already registered,
and concurrent callers for the same path share one create call.
*/
func (r *Registry[P]) GetOrAdd(path string, create func() (P, error)) (P, error) {
	if p, ok := r.Get(path); ok && !p.IsDeleted() {
		return p, nil
	}

	v, err, _ := r.creating.Do(path, func() (any, error) {
		// A flight that finished after our miss may have registered it.
		if p, ok := r.Get(path); ok && !p.IsDeleted() {
			return p, nil
		}
		p, err := create()
		if err != nil {
			return nil, err
		}
		r.Add(p)
		return p, nil
	})
	if err != nil {
		var zero P
		return zero, err
	}
	return v.(P), nil
}

// Remove drops the proxy at path.
func (r *Registry[P]) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.delete(path)
	r.recency.remove(path)
}

// Len returns the number of registered proxies.
func (r *Registry[P]) Len() int {
	return r.entries.count()
}

// List returns the registered proxies ordered by path.
func (r *Registry[P]) List() []P {
	m := r.entries.snapshot()
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]P, 0, len(paths))
	for _, p := range paths {
		out = append(out, m[p])
	}
	return out
}

// drop removes p if it is still the proxy registered at path.
func (r *Registry[P]) drop(path string, p P) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries.get(path)
	if !ok || Proxy(cur) != Proxy(p) {
		return
	}
	r.entries.delete(path)
	r.recency.remove(path)
	r.logger.Debug("dropped deleted proxy", "path", path)
}
