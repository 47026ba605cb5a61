// Package session tracks the cache-flush watermark of each connection to a
// managed host.
//
// Raising the watermark with FlushCache makes every updater whose last
// refresh predates it stale on its next ensure access, regardless of the
// freshness threshold. Sessions are process-wide: Lookup returns the same
// Session for the same host name for the lifetime of the process.
package session

import (
	"sync"
	"time"

	"github.com/krisalay/stalecache/clock"
	"go.uber.org/atomic"
)

// Session is one connection to a managed host.
type Session struct {
	host  string
	clock clock.Clock

	// lastFlush is read on every staleness check without locking.
	// flushMu only orders writers.
	flushMu   sync.Mutex
	lastFlush *atomic.Time
}

// New creates a Session that is not registered in the process-wide table.
// Most callers want Lookup; New exists for tests and for short-lived
// connections that should not share a watermark.
func New(host string, c clock.Clock) *Session {
	if c == nil {
		c = clock.Real()
	}
	return &Session{
		host:      host,
		clock:     c,
		lastFlush: atomic.NewTime(time.Time{}),
	}
}

// Host returns the host name the session connects to.
func (s *Session) Host() string { return s.host }

// FlushCache raises the watermark to the current time.
func (s *Session) FlushCache() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	now := s.clock.Now()
	if now.After(s.lastFlush.Load()) {
		s.lastFlush.Store(now)
	}
}

// LastFlush returns the current watermark. The zero time means the cache
// was never flushed.
func (s *Session) LastFlush() time.Time {
	return s.lastFlush.Load()
}

var sessions sync.Map // host name -> *Session

// Lookup returns the process-wide Session for host, creating it with the
// real clock on first use.
func Lookup(host string) *Session {
	if s, ok := sessions.Load(host); ok {
		return s.(*Session)
	}
	s, _ := sessions.LoadOrStore(host, New(host, clock.Real()))
	return s.(*Session)
}

// Forget removes host from the process-wide table. The next Lookup starts
// a fresh watermark.
func Forget(host string) {
	sessions.Delete(host)
}
