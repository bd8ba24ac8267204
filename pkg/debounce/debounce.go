// Package debounce provides the timer-plus-generation primitive that guards
// the amount/quote pipeline: every scheduled call gets a monotonically
// increasing generation number, and responses belonging to a superseded
// generation are discarded rather than applied.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into the last one. It never cancels
// work already running; callers use Latest to drop stale results.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
}

// New creates a debouncer with the given delay. A zero delay still runs
// callbacks asynchronously but without coalescing.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Do schedules fn to run after the delay, superseding any not-yet-fired
// call. The generation number passed to fn (and returned) identifies this
// call for staleness checks.
func (d *Debouncer) Do(fn func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.delay <= 0 {
		go fn(gen)
		return gen
	}
	d.timer = time.AfterFunc(d.delay, func() { fn(gen) })
	return gen
}

// Latest reports whether gen is still the most recently issued generation.
func (d *Debouncer) Latest(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

// Bump invalidates all outstanding generations without scheduling new work.
func (d *Debouncer) Bump() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
