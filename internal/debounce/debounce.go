// Package debounce collapses bursts of calls into the last one.
package debounce

import (
	"sync"
	"time"
)

// Debouncer calls fn with the latest value once wait has passed without a
// new Trigger.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	value   T
	pending bool
	seq     uint64
	stopped bool
}

// New returns a Debouncer. fn runs on its own goroutine.
func New[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Trigger records v and restarts the quiet window.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.value = v
	d.pending = true
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(seq) })
}

// fire runs fn if no Trigger, Flush or Stop happened since seq was issued.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || d.seq != seq || d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.mu.Unlock()
	d.fn(v)
}

// Flush runs fn now with the pending value, if any. It reports whether fn
// was called.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	v := d.value
	d.pending = false
	d.seq++
	d.mu.Unlock()
	d.fn(v)
	return true
}

// Pending reports whether a call is waiting for the window to close.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop drops any pending call. Later Triggers are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}
}
