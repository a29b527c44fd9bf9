package host

import (
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/eventbind/internal/engine"
)

// Element is an in-memory host element.
//
// Signals (root change, attach, detach) are delivered synchronously on the
// goroutine that caused them, after the element's own lock is released, in
// registration order.
//
// Thread-safety: all methods are safe for concurrent use.
type Element struct {
	name string

	mu         sync.Mutex
	root       any
	attached   bool
	enabled    bool
	events     map[string]*Event
	dispatcher engine.Dispatcher
	values     engine.ValueSource

	nextID   int
	onRoot   map[int]func(any)
	onAttach map[int]func()
	onDetach map[int]func()
}

// Option configures an Element.
type Option func(*Element)

// WithRoot sets the initial root.
func WithRoot(root any) Option {
	return func(e *Element) {
		e.root = root
	}
}

// Detached creates the element detached; elements start attached otherwise.
func Detached() Option {
	return func(e *Element) {
		e.attached = false
	}
}

// WithDispatcher sets the dispatcher debounced calls are posted to.
func WithDispatcher(d engine.Dispatcher) Option {
	return func(e *Element) {
		e.dispatcher = d
	}
}

// WithValueSource sets the element's value source for bound arguments.
func WithValueSource(vs engine.ValueSource) Option {
	return func(e *Element) {
		e.values = vs
	}
}

// NewElement creates an attached, enabled element with no events.
func NewElement(name string, opts ...Option) *Element {
	e := &Element{
		name:     name,
		attached: true,
		enabled:  true,
		events:   make(map[string]*Event),
		onRoot:   make(map[int]func(any)),
		onAttach: make(map[int]func()),
		onDetach: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the element name.
func (e *Element) Name() string { return e.name }

// AddEvent declares an event with the given handler signature and returns
// it. Declaring an existing name replaces the event.
func (e *Element) AddEvent(name string, signature reflect.Type) *Event {
	ev := NewEvent(name, signature)
	e.mu.Lock()
	e.events[name] = ev
	e.mu.Unlock()
	return ev
}

// Event implements engine.Element.
func (e *Element) Event(name string) (engine.EventSource, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[name]
	if !ok {
		return nil, false
	}
	return ev, true
}

// Lookup returns the concrete event, for raising it.
func (e *Element) Lookup(name string) (*Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[name]
	return ev, ok
}

// EventNames implements engine.EventLister. Names are sorted.
func (e *Element) EventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.events))
	for name := range e.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Root implements engine.RootProvider.
func (e *Element) Root() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root
}

// SetRoot assigns the root and notifies every root listener, even when the
// new root is the same as the old one.
func (e *Element) SetRoot(root any) {
	e.mu.Lock()
	e.root = root
	listeners := make([]func(any), 0, len(e.onRoot))
	for _, id := range sortedKeys(e.onRoot) {
		listeners = append(listeners, e.onRoot[id])
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(root)
	}
}

// OnRootChanged implements engine.RootProvider.
func (e *Element) OnRootChanged(fn func(any)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.register()
	e.onRoot[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.onRoot, id)
	}
}

// OnAttach implements engine.LifecycleSignals.
func (e *Element) OnAttach(fn func()) func() {
	return e.addSignal(e.onAttach, fn)
}

// OnDetach implements engine.LifecycleSignals.
func (e *Element) OnDetach(fn func()) func() {
	return e.addSignal(e.onDetach, fn)
}

func (e *Element) addSignal(set map[int]func(), fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.register()
	set[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(set, id)
	}
}

// register returns a new listener ID. Must be called with mu held.
func (e *Element) register() int {
	e.nextID++
	return e.nextID
}

// Attach marks the element attached and signals attach listeners. Attaching
// an attached element does nothing.
func (e *Element) Attach() {
	e.signal(true)
}

// Detach marks the element detached and signals detach listeners.
// Detaching a detached element does nothing.
func (e *Element) Detach() {
	e.signal(false)
}

func (e *Element) signal(attach bool) {
	e.mu.Lock()
	if e.attached == attach {
		e.mu.Unlock()
		return
	}
	e.attached = attach
	set := e.onDetach
	if attach {
		set = e.onAttach
	}
	listeners := make([]func(), 0, len(set))
	for _, id := range sortedKeys(set) {
		listeners = append(listeners, set[id])
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// IsAttached implements engine.AttachState.
func (e *Element) IsAttached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

// Dispatcher implements engine.DispatcherProvider.
func (e *Element) Dispatcher() engine.Dispatcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatcher
}

// ValueSource implements engine.ValueSourceProvider.
func (e *Element) ValueSource() engine.ValueSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values
}

// SetEnabled implements engine.Enabler.
func (e *Element) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled reports the element's enabled state.
func (e *Element) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
