// Package proxy models hypervisor objects as cached local proxies.
//
// Each proxy reads remote state only through its updaters. Updaters
// registered as primary carry the proxy's identity: when any of them
// observes the remote object deleted, the proxy itself is deleted.
package proxy

import (
	"sync"
)

// deletable is the part of an updater a proxy listens to.
type deletable interface {
	OnDeleted(fn func())
}

// Object is the base embedded by every proxy.
type Object struct {
	path string

	mu        sync.Mutex
	deleted   bool
	listeners []func()
	done      chan struct{}
}

func newObject(path string) *Object {
	return &Object{path: path, done: make(chan struct{})}
}

// Path returns the remote object path.
func (o *Object) Path() string { return o.path }

// IsDeleted reports whether a primary updater observed the remote
// object deleted. It never reverts.
func (o *Object) IsDeleted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deleted
}

// Deleted returns a channel closed when the proxy is deleted.
func (o *Object) Deleted() <-chan struct{} { return o.done }

// OnDeleted registers fn to run once when the proxy is deleted, or runs
// it now if it already is.
func (o *Object) OnDeleted(fn func()) {
	o.mu.Lock()
	if o.deleted {
		o.mu.Unlock()
		fn()
		return
	}
	o.listeners = append(o.listeners, fn)
	o.mu.Unlock()
}

// primary ties the proxy's lifetime to u.
func (o *Object) primary(u deletable) {
	u.OnDeleted(o.markDeleted)
}

func (o *Object) markDeleted() {
	o.mu.Lock()
	if o.deleted {
		o.mu.Unlock()
		return
	}
	o.deleted = true
	close(o.done)
	listeners := o.listeners
	o.listeners = nil
	o.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
