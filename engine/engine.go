package engine

import (
	"log/slog"
	"time"

	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/expiration"
	"github.com/krisalay/stalecache/session"
	"github.com/krisalay/stalecache/types"
)

/*
Engine holds the rules shared by every updater on one connection.
It is the policy layer, not storage.

It decides:
  - what time it is
  - whether a cached entry is stale
  - how a refreshed entry is stamped
  - where events are logged and counted

It does NOT:
  - hold values
  - lock anything
  - talk to the remote host

An Engine is immutable after construction and safe to share.
*/
type Engine struct {

	// Expiration decides staleness. Defaults to MaxAge with the default
	// threshold and no watermark.
	Expiration expiration.Strategy

	// Clock is the only time source updaters use.
	Clock clock.Clock

	// Metrics counts hits, refreshes, deletions and recoveries.
	Metrics types.Metrics

	// Logger receives refresh, deletion and recovery events.
	Logger *slog.Logger
}

/*
New creates an Engine. Nil arguments get defaults so callers never need
nil checks: the real clock, MaxAge with the default threshold, no-op
metrics and slog.Default().
*/
func New(
	exp expiration.Strategy,
	c clock.Clock,
	metrics types.Metrics,
	logger *slog.Logger,
) *Engine {
	if c == nil {
		c = clock.Real()
	}
	if exp == nil {
		exp = &expiration.MaxAge{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		Expiration: exp,
		Clock:      c,
		Metrics:    metrics,
		Logger:     logger,
	}
}

// ForSession creates an Engine whose staleness rule honors the session's
// cache-flush watermark.
func ForSession(
	s *session.Session,
	threshold time.Duration,
	c clock.Clock,
	metrics types.Metrics,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return New(
		&expiration.MaxAge{MaxAge: threshold, Watermark: s},
		c,
		metrics,
		logger.With("host", s.Host()),
	)
}

// Default returns an Engine with every default.
func Default() *Engine {
	return New(nil, nil, nil, nil)
}

// Named returns a copy of e whose logger tags events with the updater name.
func (e *Engine) Named(name string) *Engine {
	return e.With("updater", name)
}

// With returns a copy of e whose logger carries the given attributes.
func (e *Engine) With(args ...any) *Engine {
	cp := *e
	cp.Logger = e.Logger.With(args...)
	return &cp
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.Clock.Now()
}

// Threshold is the freshness threshold handed to remote handles.
func (e *Engine) Threshold() time.Duration {
	return e.Expiration.Threshold()
}

/*
IsStale reports whether an entry needs a refresh before answering an
ensure policy. Deleted entries are never stale: their refresh is a no-op.
*/
func (e *Engine) IsStale(f types.Freshness) bool {
	if f.Deleted {
		return false
	}
	return e.Expiration.IsStale(f, e.Now())
}

// OnRefresh stamps f after a completed refresh.
func (e *Engine) OnRefresh(f *types.Freshness) {
	e.Expiration.OnRefresh(f, e.Now())
}
