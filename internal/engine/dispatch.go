package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher is an execution context that callbacks can be posted to.
//
// Debounced calls are posted to the Dispatcher captured when their binding
// was created; they never run on a timer goroutine.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Post calls f.
func (f DispatcherFunc) Post(fn func()) { f(fn) }

// Loop is a FIFO dispatcher drained by a single goroutine.
//
// The queue is unbounded so Post never blocks a timer goroutine. A
// callback that panics is recovered and logged; the loop keeps running so
// one binding's fault never stops another binding's callbacks.
//
// Thread-safety:
//   - Post(): safe from any goroutine
//   - Run(), RunPending(): one drainer at a time
//
// The queue uses a channel for signaling to enable context-aware waiting
// in Run (prevents goroutine hangs on context cancellation).
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{} // Signals callback availability (buffered, size 1)
	logger *slog.Logger
}

// NewLoop creates an empty loop. A nil logger means slog.Default().
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
		logger: logger,
	}
}

// Post appends fn to the queue. Callbacks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.logger.Debug("dispatcher closed, dropping callback")
		return
	}

	l.queue = append(l.queue, fn)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// tryNext removes and returns the front callback.
func (l *Loop) tryNext() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}

	fn := l.queue[0]
	// Nil out the slot so the closure (and the arguments it captured) can
	// be collected.
	l.queue[0] = nil
	if len(l.queue) == 1 {
		l.queue = l.queue[:0]
	} else {
		l.queue = l.queue[1:]
	}
	return fn, true
}

// Run drains the loop until ctx is cancelled or the loop is closed and
// empty. Returns ctx.Err() on cancellation, nil after Close.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			fn, ok := l.tryNext()
			if !ok {
				break
			}
			l.runSafely(fn)
		}

		l.mu.Lock()
		done := l.closed && len(l.queue) == 0
		l.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

// RunPending runs every callback queued so far on the calling goroutine
// and returns how many ran. Callbacks posted while draining also run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		fn, ok := l.tryNext()
		if !ok {
			return n
		}
		l.runSafely(fn)
		n++
	}
}

func (l *Loop) runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatched callback panicked", "panic", r)
		}
	}()
	fn()
}

// Len returns the number of queued callbacks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting callbacks. Callbacks already queued still run.
// Wakes any blocked Run by closing the signal channel.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}
