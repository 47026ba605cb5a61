package expiration

import (
	"time"

	"github.com/krisalay/stalecache/types"
)

/*
MaxAge is the standard freshness rule. An entry is stale when:
  - it was never loaded
  - it is older than MaxAge
  - the watermark was raised after it was last refreshed
*/
type MaxAge struct {
	// MaxAge is the freshness threshold. Zero means types.DefaultFreshnessThreshold.
	MaxAge time.Duration

	// Watermark is optional. A nil Watermark never forces a refresh.
	Watermark Watermark
}

// IsStale checks f against the threshold and the watermark.
func (m *MaxAge) IsStale(f types.Freshness, now time.Time) bool {
	if !f.Initialized {
		return true
	}
	if now.Sub(f.LastRefresh) > m.Threshold() {
		return true
	}
	return m.Watermark != nil && m.Watermark.LastFlush().After(f.LastRefresh)
}

/*
OnRefresh marks f initialized and stamps it. The stamp never moves
backwards: a clock step back leaves the previous stamp in place.
*/
func (m *MaxAge) OnRefresh(f *types.Freshness, now time.Time) {
	f.Initialized = true
	if now.After(f.LastRefresh) {
		f.LastRefresh = now
	}
}

// Threshold returns the effective maximum age.
func (m *MaxAge) Threshold() time.Duration {
	if m.MaxAge <= 0 {
		return types.DefaultFreshnessThreshold
	}
	return m.MaxAge
}
