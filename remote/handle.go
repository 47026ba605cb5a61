package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/krisalay/stalecache/types"
)

// ErrNotFound is returned for operations on objects the host does not have.
var ErrNotFound = errors.New("object not found")

var _ types.RemoteHandle = (*Handle)(nil)

/*
Handle references one object on a Host and caches its properties and
associations locally. The two caches are refreshed independently.

A Handle skips the round trip when its cache is younger than the
threshold it is given and the session has not been flushed since.
*/
type Handle struct {
	host  *Host
	path  string
	class string

	mu      sync.RWMutex
	props   map[string]any
	propsAt time.Time
	assoc   map[string][]string
	assocAt time.Time
}

// NewTemplate returns a handle for an object that does not exist on any
// host, such as the description of an adapter not yet added. Its
// properties are fixed and its updates are no-ops.
func NewTemplate(class string, props map[string]any) *Handle {
	return &Handle{class: class, props: copyProps(props)}
}

// Path returns the object path the handle references.
func (hd *Handle) Path() string { return hd.path }

// Class returns the object's class.
func (hd *Handle) Class() string { return hd.class }

// UpdatePropertyCache reloads the property cache.
func (hd *Handle) UpdatePropertyCache(ctx context.Context, threshold time.Duration) (types.Status, error) {
	return hd.update(ctx, threshold, false)
}

// UpdateAssociationCache reloads the association cache.
func (hd *Handle) UpdateAssociationCache(ctx context.Context, threshold time.Duration) (types.Status, error) {
	return hd.update(ctx, threshold, true)
}

func (hd *Handle) update(ctx context.Context, threshold time.Duration, associations bool) (types.Status, error) {
	if err := ctx.Err(); err != nil {
		return types.StatusOK, err
	}
	if hd.host == nil {
		return types.StatusOK, nil
	}

	hd.mu.Lock()
	defer hd.mu.Unlock()

	at := hd.propsAt
	if associations {
		at = hd.assocAt
	}
	if hd.fresh(at, threshold) {
		return types.StatusOK, nil
	}

	props, assoc, ok, err := hd.host.fetch(hd)
	if err != nil {
		return types.StatusOK, err
	}
	if !ok {
		return types.StatusDeleted, nil
	}

	now := hd.host.clock.Now()
	if associations {
		hd.assoc, hd.assocAt = assoc, now
	} else {
		hd.props, hd.propsAt = props, now
	}
	return types.StatusOK, nil
}

// Load fills both caches, as the enumeration query that produced the
// handle would have.
func (hd *Handle) Load(ctx context.Context) error {
	for _, fn := range []func(context.Context, time.Duration) (types.Status, error){
		hd.UpdatePropertyCache,
		hd.UpdateAssociationCache,
	} {
		status, err := fn(ctx, 0)
		if err != nil {
			return err
		}
		if status == types.StatusDeleted {
			return fmt.Errorf("load %s: %w", hd.path, ErrNotFound)
		}
	}
	return nil
}

// fresh must be called with mu held.
func (hd *Handle) fresh(at time.Time, threshold time.Duration) bool {
	if at.IsZero() {
		return false
	}
	if hd.host.clock.Now().Sub(at) > threshold {
		return false
	}
	s := hd.host.session
	return s == nil || !s.LastFlush().After(at)
}

// Property returns a cached property. ok is false when it was never
// loaded or does not exist.
func (hd *Handle) Property(name string) (any, bool) {
	hd.mu.RLock()
	defer hd.mu.RUnlock()
	v, ok := hd.props[name]
	return v, ok
}

// StringProperty returns a cached string property, or "" when absent.
func (hd *Handle) StringProperty(name string) string {
	v, _ := hd.Property(name)
	s, _ := v.(string)
	return s
}

// Related returns handles for the cached role association. Targets that
// no longer exist on the host are skipped.
func (hd *Handle) Related(role string) []*Handle {
	hd.mu.RLock()
	paths := append([]string(nil), hd.assoc[role]...)
	hd.mu.RUnlock()

	if hd.host == nil {
		return nil
	}

	out := make([]*Handle, 0, len(paths))
	for _, p := range paths {
		if target := hd.host.Lookup(p); target != nil {
			out = append(out, target)
		}
	}
	return out
}

// RelatedOne returns the first related handle for role, or nil.
func (hd *Handle) RelatedOne(role string) *Handle {
	related := hd.Related(role)
	if len(related) == 0 {
		return nil
	}
	return related[0]
}
