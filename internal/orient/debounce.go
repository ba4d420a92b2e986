package orient

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single trailing invocation:
// each Trigger cancels the pending one and reschedules, so only the last
// call in a burst runs, after the quiet period elapses. This is plain
// trailing-edge debounce, not a rate limiter.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiet period. A
// non-positive delay makes Trigger run its function synchronously.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the quiet period, replacing any
// previously scheduled function that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	if d.delay <= 0 {
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
