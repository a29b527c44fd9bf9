package testutil

import (
	"sort"
	"sync"
	"time"
)

// FakeTimers is a virtual clock with one-shot timers for tests.
//
// Time only moves when Advance is called. AfterFunc has the shape of
// engine.AfterFunc, so a FakeTimers can be passed to engine.WithTimers
// without this package importing engine.
//
// Callbacks run on the goroutine calling Advance, in due-time order (ties in
// scheduling order), with Now reporting each callback's own due time. They
// never run inside AfterFunc or a stop call.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeTimers struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewFakeTimers creates a virtual clock at time 0.
func NewFakeTimers() *FakeTimers {
	return &FakeTimers{}
}

// AfterFunc schedules fn to run d after the current virtual time.
// The returned stop func reports whether it prevented the call.
func (f *FakeTimers) AfterFunc(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{at: f.now + d, seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)

	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if t.fired || t.stopped {
			return false
		}
		t.stopped = true
		return true
	}
}

// Advance moves virtual time forward by d, running every timer that falls
// due, including timers scheduled by callbacks within the window. Returns
// the number of callbacks run.
func (f *FakeTimers) Advance(d time.Duration) int {
	f.mu.Lock()
	target := f.now + d
	f.mu.Unlock()

	fired := 0
	for {
		f.mu.Lock()
		next := f.nextDue(target)
		if next == nil {
			f.now = target
			f.compact()
			f.mu.Unlock()
			return fired
		}
		next.fired = true
		f.now = next.at
		f.mu.Unlock()

		next.fn()
		fired++
	}
}

// nextDue returns the earliest active timer due at or before target.
// Must be called with mu held.
func (f *FakeTimers) nextDue(target time.Duration) *fakeTimer {
	active := make([]*fakeTimer, 0, len(f.timers))
	for _, t := range f.timers {
		if !t.fired && !t.stopped && t.at <= target {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].at != active[j].at {
			return active[i].at < active[j].at
		}
		return active[i].seq < active[j].seq
	})
	return active[0]
}

// compact drops fired and stopped timers. Must be called with mu held.
func (f *FakeTimers) compact() {
	live := f.timers[:0]
	for _, t := range f.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(f.timers); i++ {
		f.timers[i] = nil
	}
	f.timers = live
}

// Now returns the current virtual time since creation.
func (f *FakeTimers) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Pending returns the number of scheduled timers that have neither fired
// nor been stopped.
func (f *FakeTimers) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}
