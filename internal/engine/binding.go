package engine

import (
	"reflect"
	"sync"

	"github.com/roach88/eventbind/internal/ir"
)

// Binding is one declaration bound to one event of one element: the
// lifecycle controller.
//
// State machine:
//   - root available while Unbound: fetch or synthesize, subscribe, Bound
//   - root identity change while Bound: unsubscribe old, regenerate, subscribe
//   - detach while Bound: unsubscribe, Unbound
//   - attach while Unbound: subscribe the existing handler, Bound
//
// A root change always leaves the binding Bound, even while detached; a
// later attach finds it Bound and does not subscribe twice. An absent root
// is not an error: the shared no-op handler is subscribed instead.
//
// Thread-safety: every transition holds the binding's mutex, so a detach
// racing a root change can never leave the handler double subscribed or
// lost. Handlers are invoked without the lock.
type Binding struct {
	id        string
	decl      *ir.BindingDeclaration
	eventName string
	source    EventSource
	roots     RootProvider
	gen       *Generator
	cfg       *config
	values    ValueSource
	debouncer *Debouncer // nil without debounce

	mu          sync.Mutex
	state       ir.LifecycleState
	attached    bool
	ready       bool
	closed      bool
	root        any
	handler     *Handler
	err         error
	generations int
	cancels     []func()
	onClose     func(*Binding)
}

// bindingParts are the collaborators of a new Binding.
type bindingParts struct {
	decl       *ir.BindingDeclaration
	eventName  string
	source     EventSource
	roots      RootProvider
	signals    LifecycleSignals
	attached   bool
	values     ValueSource
	dispatcher Dispatcher
	cleanup    []func()       // Run once when the binding closes
	onClose    func(*Binding) // Called after Close, outside the lock
}

// newBinding creates and starts a binding. A structural error while
// generating the initial handler is returned and leaves nothing
// registered with the host.
func newBinding(gen *Generator, cfg *config, p bindingParts) (*Binding, error) {
	b := &Binding{
		id:        cfg.ids.Generate(),
		decl:      p.decl,
		eventName: p.eventName,
		source:    p.source,
		roots:     p.roots,
		gen:       gen,
		cfg:       cfg,
		values:    p.values,
		attached:  p.attached,
		onClose:   p.onClose,
	}
	if d := p.decl.Debounce(); d > 0 {
		b.debouncer = NewDebouncer(d, cfg.timers, p.dispatcher, func() {
			b.emit(ir.ObsDebounce, "")
		})
	}

	// Register first so no signal between reading the root and registering
	// is lost. Signals arriving before ready only update the attach flag;
	// start reads the current root itself.
	b.cancels = append(b.cancels,
		p.roots.OnRootChanged(b.onRootChanged),
		p.signals.OnAttach(b.onAttach),
		p.signals.OnDetach(b.onDetach),
	)
	b.cancels = append(b.cancels, p.cleanup...)

	if err := b.start(); err != nil {
		b.cancelRegistrations()
		return nil, err
	}
	return b, nil
}

func (b *Binding) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	root := b.roots.Root()
	h, err := b.generate(root)
	if err != nil {
		return err
	}
	b.root = root
	b.handler = h
	b.ready = true
	if b.attached {
		b.subscribe()
	}
	return nil
}

// generate builds a handler for root. Must be called with mu held.
func (b *Binding) generate(root any) (*Handler, error) {
	h, err := b.gen.Handler(Request{
		Event:     b.source.Signature(),
		Root:      root,
		Decl:      b.decl,
		Values:    b.values,
		Wrap:      b.wrap,
		BindingID: b.id,
		EventName: b.eventName,
	})
	if err != nil {
		return nil, err
	}
	if !h.IsNoop() {
		b.generations++
	}
	return h, nil
}

// wrap adds observation and, when configured, debounce around a call body.
func (b *Binding) wrap(call func(in []reflect.Value)) func(in []reflect.Value) {
	observed := func(in []reflect.Value) {
		b.emit(ir.ObsInvoke, "")
		call(in)
	}
	if b.debouncer == nil {
		return observed
	}
	return func(in []reflect.Value) {
		// The event's argument slice may be reused by the caller after
		// return; keep a copy for the delayed call.
		args := append([]reflect.Value(nil), in...)
		b.debouncer.Trigger(func() { observed(args) })
	}
}

func (b *Binding) subscribe() {
	b.source.Subscribe(b.handler)
	b.state = ir.StateBound
	b.cfg.logger.Debug("binding subscribed",
		"binding", b.id,
		"event", b.eventName,
		"path", b.decl.Path(),
		"noop", b.handler.IsNoop())
	b.emit(ir.ObsSubscribe, noopDetail(b.handler))
}

func (b *Binding) unsubscribe() {
	b.source.Unsubscribe(b.handler)
	b.state = ir.StateUnbound
	b.cfg.logger.Debug("binding unsubscribed",
		"binding", b.id,
		"event", b.eventName,
		"path", b.decl.Path())
	b.emit(ir.ObsUnsubscribe, noopDetail(b.handler))
}

func noopDetail(h *Handler) string {
	if h.IsNoop() {
		return "noop"
	}
	return ""
}

func (b *Binding) onRootChanged(root any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.ready || sameRoot(b.root, root) {
		return
	}
	b.applyRoot(root, true)
}

// applyRoot swaps in a handler for root. Must be called with mu held.
// When subscribe is set the new handler is subscribed even if the binding
// was Unbound.
//
// A structural error cannot be returned to anyone here: it is logged,
// recorded for Err, and the binding falls back to the no-op handler.
func (b *Binding) applyRoot(root any, subscribe bool) {
	if b.debouncer != nil {
		b.debouncer.Stop()
	}
	b.emit(ir.ObsRootChange, "")

	h, err := b.generate(root)
	b.err = err
	if err != nil {
		b.cfg.logger.Warn("binding regeneration failed, falling back to no-op",
			"binding", b.id,
			"event", b.eventName,
			"path", b.decl.Path(),
			"error", err)
		b.emit(ir.ObsBindingError, err.Error())
		h = b.gen.Noop(b.source.Signature())
	}

	wasBound := b.state == ir.StateBound
	if wasBound {
		b.unsubscribe()
	}
	b.root = root
	b.handler = h
	if wasBound || subscribe {
		b.subscribe()
	}
}

func (b *Binding) onAttach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attached = true
	if b.closed || !b.ready || b.state == ir.StateBound {
		return
	}
	b.subscribe()
}

func (b *Binding) onDetach() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attached = false
	if b.closed || b.state != ir.StateBound {
		return
	}
	b.unsubscribe()
}

// Refresh regenerates the handler for the current root even when its
// identity has not changed, re-pulling bound values. The structural error,
// if any, is returned as well as recorded for Err.
func (b *Binding) Refresh() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return newClosedError()
	}
	b.applyRoot(b.roots.Root(), false)
	return b.err
}

// Close unsubscribes, cancels any pending debounced call and stops
// listening to the element. Close is idempotent.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.state == ir.StateBound {
		b.unsubscribe()
	}
	if b.debouncer != nil {
		b.debouncer.Stop()
	}
	b.mu.Unlock()

	// Outside the lock: a host may hold its own lock while delivering
	// signals that wait on ours.
	b.cancelRegistrations()
	if b.onClose != nil {
		b.onClose(b)
	}
}

func (b *Binding) cancelRegistrations() {
	for _, cancel := range b.cancels {
		if cancel != nil {
			cancel()
		}
	}
	b.cancels = nil
}

func (b *Binding) emit(kind ir.ObservationKind, detail string) {
	b.cfg.emit(ir.Observation{
		Kind:      kind,
		BindingID: b.id,
		Event:     b.eventName,
		Path:      b.decl.Path(),
		Detail:    detail,
	})
}

// ID returns the binding's identifier.
func (b *Binding) ID() string { return b.id }

// EventName returns the event this binding listens to.
func (b *Binding) EventName() string { return b.eventName }

// Declaration returns the binding declaration.
func (b *Binding) Declaration() *ir.BindingDeclaration { return b.decl }

// State returns the current subscription state.
func (b *Binding) State() ir.LifecycleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Handler returns the current handler (the no-op handler while no root is
// available).
func (b *Binding) Handler() *Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

// Err returns the structural error of the last regeneration, or nil.
func (b *Binding) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Generations returns how many non-no-op handlers this binding has
// instantiated, including the initial one.
func (b *Binding) Generations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generations
}

// Attached reports the last attach state seen by the binding.
func (b *Binding) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached
}

// sameRoot reports whether a and b are the same root by identity.
//
// Pointer-shaped kinds compare addresses; slices compare their backing
// array and length; other comparable values compare with ==. Funcs and
// values that cannot be compared always count as changed.
func sameRoot(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if !va.Type().Comparable() {
		return false
	}
	return safeEqual(a, b)
}

// safeEqual compares with ==, treating a runtime panic (an interface field
// holding an uncomparable value) as "not equal".
func safeEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
