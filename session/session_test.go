package session_test

import (
	"testing"
	"time"

	"github.com/krisalay/stalecache/clock"
	"github.com/krisalay/stalecache/session"
)

func TestFlushRaisesWatermark(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fake(start)
	s := session.New("hv01", c)

	if !s.LastFlush().IsZero() {
		t.Fatalf("new session has watermark %v", s.LastFlush())
	}

	c.Advance(time.Second)
	s.FlushCache()
	if got := s.LastFlush(); !got.Equal(start.Add(time.Second)) {
		t.Fatalf("LastFlush() = %v", got)
	}
}

func TestFlushNeverMovesBackwards(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.Fake(start)
	s := session.New("hv01", c)

	s.FlushCache()
	c.Set(start.Add(-time.Hour))
	s.FlushCache()

	if got := s.LastFlush(); !got.Equal(start) {
		t.Fatalf("watermark moved backwards to %v", got)
	}
}

func TestLookupIsProcessWide(t *testing.T) {
	defer session.Forget("hv-lookup")

	a := session.Lookup("hv-lookup")
	b := session.Lookup("hv-lookup")
	if a != b {
		t.Fatal("Lookup returned different sessions for the same host")
	}
	if a.Host() != "hv-lookup" {
		t.Fatalf("Host() = %q", a.Host())
	}

	session.Forget("hv-lookup")
	if session.Lookup("hv-lookup") == a {
		t.Fatal("Forget did not drop the session")
	}
}
