// Package remote is an in-memory stand-in for a managed virtualization
// host. It keeps an object graph of classes, properties and associations
// and hands out Handles that implement types.RemoteHandle.
//
// Every property or association fetch is counted so callers can verify
// how often the cache layer actually reached the host.
package remote

import (
	"fmt"
	"sort"
	"sync"

	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/session"
	"go.uber.org/atomic"
)

// object is the host-side record of one managed object.
type object struct {
	class string
	props map[string]any
	assoc map[string][]string
}

// Host is a simulated management endpoint. Safe for concurrent use.
type Host struct {
	session *session.Session
	clock   clock.Clock

	mu      sync.RWMutex
	objects map[string]*object
	handles map[string]*Handle
	failure error

	fetches atomic.Int64
}

// NewHost creates an empty host reachable through s.
func NewHost(s *session.Session, c clock.Clock) *Host {
	if c == nil {
		c = clock.Real()
	}
	return &Host{
		session: s,
		clock:   c,
		objects: make(map[string]*object),
		handles: make(map[string]*Handle),
	}
}

// Session returns the connection the host is reached through.
func (h *Host) Session() *session.Session { return h.session }

// Create adds an object at path and returns its handle. An existing
// object at path is replaced and its old handle stops resolving.
func (h *Host) Create(path, class string, props map[string]any) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.objects[path] = &object{class: class, props: copyProps(props), assoc: make(map[string][]string)}
	delete(h.handles, path)
	return h.handleLocked(path)
}

// Set changes one property of the object at path.
func (h *Host) Set(path, key string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obj, ok := h.objects[path]
	if !ok {
		return fmt.Errorf("set %s on %s: %w", key, path, ErrNotFound)
	}
	obj.props[key] = value
	return nil
}

// Associate points the role association of path at targets, replacing
// whatever it pointed at before.
func (h *Host) Associate(path, role string, targets ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obj, ok := h.objects[path]
	if !ok {
		return fmt.Errorf("associate %s on %s: %w", role, path, ErrNotFound)
	}
	obj.assoc[role] = append([]string(nil), targets...)
	return nil
}

// Delete removes the object at path. Handles to it report StatusDeleted
// on their next refresh.
func (h *Host) Delete(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.objects, path)
	delete(h.handles, path)
}

// Lookup returns the handle for path, or nil when nothing lives there.
func (h *Host) Lookup(path string) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.objects[path]; !ok {
		return nil
	}
	return h.handleLocked(path)
}

// Paths lists every object of class, sorted.
func (h *Host) Paths(class string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []string
	for p, obj := range h.objects {
		if obj.class == class {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// FailNext makes the next fetch fail with err, simulating a transport or
// permission failure.
func (h *Host) FailNext(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = err
}

// Fetches returns how many property or association fetches reached the host.
func (h *Host) Fetches() int64 {
	return h.fetches.Load()
}

// handleLocked returns the one Handle for path. Must be called with mu held.
func (h *Host) handleLocked(path string) *Handle {
	if hd, ok := h.handles[path]; ok {
		return hd
	}
	hd := &Handle{host: h, path: path, class: h.objects[path].class}
	h.handles[path] = hd
	return hd
}

// fetch copies the object's current state. ok is false when the object
// no longer exists or was replaced by a different object.
func (h *Host) fetch(hd *Handle) (props map[string]any, assoc map[string][]string, ok bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fetches.Inc()

	if h.failure != nil {
		err, h.failure = h.failure, nil
		return nil, nil, false, err
	}

	obj, exists := h.objects[hd.path]
	if !exists || h.handles[hd.path] != hd {
		return nil, nil, false, nil
	}

	props = copyProps(obj.props)
	assoc = make(map[string][]string, len(obj.assoc))
	for k, v := range obj.assoc {
		assoc[k] = append([]string(nil), v...)
	}
	return props, assoc, true, nil
}

func copyProps(props map[string]any) map[string]any {
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}
