// Package tracker counts provider calls that are currently in flight.
package tracker

import "sync/atomic"

// Tracker counts running calls using atomics and remembers the highest
// concurrency it has observed.
type Tracker struct {
	running atomic.Int64
	peak    atomic.Int64
}

// Inc increments the running counter.
func (t *Tracker) Inc() {
	n := t.running.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Dec decrements the running counter.
func (t *Tracker) Dec() { t.running.Add(-1) }

// Begin marks the start of a call and returns the func that ends it.
// A nil Tracker is valid and tracks nothing.
func (t *Tracker) Begin() (end func()) {
	if t == nil {
		return func() {}
	}
	t.Inc()
	return t.Dec
}

// Running returns the current running count.
func (t *Tracker) Running() int64 { return t.running.Load() }

// Peak returns the highest running count seen so far.
func (t *Tracker) Peak() int64 { return t.peak.Load() }
