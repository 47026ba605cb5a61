package types

import "go.uber.org/atomic"

// This file defines how updaters report what they are doing.

/*
Metrics is the set of events an updater reports. Each method is called
once per event, from whichever goroutine observed it.
*/
type Metrics interface {

	// Hit is called when a value is returned without a remote refresh.
	Hit()

	// Refresh is called when an updater performs a refresh.
	Refresh()

	// Delete is called when an updater observes its remote object deleted.
	Delete()

	// Recover is called when a recovering updater adopts a replacement handle.
	Recover()
}

/*
NoopMetrics is the default Metrics. Updaters never check for a nil
Metrics; they get this instead.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()     {}
func (NoopMetrics) Refresh() {}
func (NoopMetrics) Delete()  {}
func (NoopMetrics) Recover() {}

// CountingMetrics counts every event. Safe for concurrent use.
type CountingMetrics struct {
	Hits      atomic.Int64
	Refreshes atomic.Int64
	Deletes   atomic.Int64
	Recovers  atomic.Int64
}

func (m *CountingMetrics) Hit()     { m.Hits.Inc() }
func (m *CountingMetrics) Refresh() { m.Refreshes.Inc() }
func (m *CountingMetrics) Delete()  { m.Deletes.Inc() }
func (m *CountingMetrics) Recover() { m.Recovers.Inc() }
