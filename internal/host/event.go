package host

import (
	"reflect"
	"sync"

	"github.com/roach88/eventbind/internal/engine"
)

// Event is an in-memory event source.
//
// Handlers form a multiset: subscribing the same handler twice invokes it
// twice, and Unsubscribe removes the most recent occurrence.
//
// Thread-safety: all methods are safe for concurrent use. Raise invokes a
// snapshot of the handlers without holding the lock.
type Event struct {
	name      string
	signature reflect.Type

	mu       sync.Mutex
	handlers []*engine.Handler
}

// NewEvent creates an event with the given handler func type.
func NewEvent(name string, signature reflect.Type) *Event {
	return &Event{name: name, signature: signature}
}

// Name returns the event name.
func (e *Event) Name() string { return e.name }

// Signature implements engine.EventSource.
func (e *Event) Signature() reflect.Type { return e.signature }

// Subscribe implements engine.EventSource.
func (e *Event) Subscribe(h *engine.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Unsubscribe implements engine.EventSource.
func (e *Event) Unsubscribe(h *engine.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.handlers) - 1; i >= 0; i-- {
		if e.handlers[i] == h {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Raise invokes every subscribed handler in subscription order. Panics
// raised by a handler propagate to the caller and skip later handlers.
func (e *Event) Raise(args ...any) {
	for _, h := range e.Handlers() {
		h.Invoke(args...)
	}
}

// Handlers returns a snapshot of the subscribed handlers.
func (e *Event) Handlers() []*engine.Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*engine.Handler(nil), e.handlers...)
}

// Count returns the number of subscriptions.
func (e *Event) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
