package testutil

import "sync"

// ManualDispatcher queues posted callbacks until the test runs them.
//
// It has the shape of engine.Dispatcher. Unlike engine.Loop it does not
// recover panics, so a failing callback fails the test that ran it.
//
// Thread-safety: Post and Len are safe for concurrent use; RunPending runs
// callbacks on the calling goroutine.
type ManualDispatcher struct {
	mu     sync.Mutex
	queue  []func()
	posted int
}

// NewManualDispatcher creates an empty dispatcher.
func NewManualDispatcher() *ManualDispatcher {
	return &ManualDispatcher{}
}

// Post queues fn.
func (d *ManualDispatcher) Post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, fn)
	d.posted++
}

// RunPending runs queued callbacks in FIFO order, including callbacks
// posted while running, and returns how many ran.
func (d *ManualDispatcher) RunPending() int {
	n := 0
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return n
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
		n++
	}
}

// Len returns the number of queued callbacks.
func (d *ManualDispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Posted returns how many callbacks were ever posted.
func (d *ManualDispatcher) Posted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posted
}
