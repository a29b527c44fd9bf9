package engine

import (
	"sync"
	"time"
)

// AfterFunc starts a one-shot timer that calls f after d and returns a
// function that stops it. stop reports whether the call was prevented.
//
// It is a plain func type so fake timers in tests need not import this
// package.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// SystemTimers is the production AfterFunc, backed by time.AfterFunc.
func SystemTimers(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Debouncer collapses bursts of calls into one delayed call.
//
// Every Trigger stops the pending timer and starts a new one, so calls
// within the interval reschedule and never stack. On expiry the call from
// the last Trigger is posted to the Dispatcher; it never runs on the timer
// goroutine.
//
// A generation counter guards against a timer that fired concurrently with
// a later Trigger or Stop: only the newest generation may post.
//
// Thread-safety: all methods are safe for concurrent use.
type Debouncer struct {
	interval time.Duration
	after    AfterFunc
	dispatch Dispatcher
	onFire   func()

	mu      sync.Mutex
	gen     uint64
	stop    func() bool
	pending func()
}

// NewDebouncer creates a debouncer. onFire, if non-nil, runs on the timer
// goroutine just before the pending call is posted.
func NewDebouncer(interval time.Duration, after AfterFunc, dispatch Dispatcher, onFire func()) *Debouncer {
	return &Debouncer{
		interval: interval,
		after:    after,
		dispatch: dispatch,
		onFire:   onFire,
	}
}

// Trigger schedules call, replacing any pending call.
func (d *Debouncer) Trigger(call func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		d.stop()
	}
	d.gen++
	gen := d.gen
	d.pending = call
	d.stop = d.after(d.interval, func() { d.expire(gen) })
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.pending == nil {
		d.mu.Unlock()
		return
	}
	call := d.pending
	d.pending = nil
	d.stop = nil
	d.mu.Unlock()

	if d.onFire != nil {
		d.onFire()
	}
	d.dispatch.Post(call)
}

// Stop cancels the pending call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.pending = nil
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Interval returns the debounce interval.
func (d *Debouncer) Interval() time.Duration { return d.interval }
