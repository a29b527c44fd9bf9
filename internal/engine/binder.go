package engine

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/literal"
	"github.com/roach88/eventbind/internal/resolve"
)

// Binder creates bindings and owns the Generator whose caches they share.
//
// One Binder is meant per application or root context. Closing it closes
// every binding it created and stops its default dispatcher.
//
// Thread-safety: all methods are safe for concurrent use.
type Binder struct {
	cfg *config
	gen *Generator

	loopOnce sync.Once
	loop     *Loop

	mu       sync.Mutex
	closed   bool
	bindings []*Binding
}

// New creates a Binder.
//
// Options can be passed to configure logging, timers, dispatching, bound
// value resolution, cache limits, IDs and observation (e.g. WithLogger).
func New(opts ...Option) *Binder {
	cfg := newConfig(opts)
	return &Binder{
		cfg: cfg,
		gen: newGenerator(cfg),
	}
}

// Generator returns the Binder's handler generator.
func (b *Binder) Generator() *Generator { return b.gen }

// Bind binds decl to every event it names on el, one Binding per event.
//
// All-or-nothing: if any event fails, bindings already created for this
// call are closed and the error is returned.
func (b *Binder) Bind(el Element, decl *ir.BindingDeclaration) ([]*Binding, error) {
	events := decl.Events()
	if len(events) == 0 {
		return nil, &EngineError{Code: ErrCodeNoEvents, Message: "declaration " + decl.Name() + " names no events"}
	}

	bindings := make([]*Binding, 0, len(events))
	for _, event := range events {
		bd, err := b.BindEvent(el, event, decl)
		if err != nil {
			for _, done := range bindings {
				done.Close()
			}
			return nil, err
		}
		bindings = append(bindings, bd)
	}
	return bindings, nil
}

// BindEvent binds decl to one named event of el, ignoring decl.Events().
//
// Errors:
//   - MISSING_EVENT: el has no such event
//   - INVALID_EVENT: the event's signature is not a func type
//   - any structural ir.BindError from generating the initial handler
func (b *Binder) BindEvent(el Element, event string, decl *ir.BindingDeclaration) (*Binding, error) {
	source, err := b.eventSource(el, event)
	if err != nil {
		return nil, err
	}
	return b.bindSource(bindingParts{
		decl:      decl,
		eventName: event,
		source:    source,
		roots:     el,
		signals:   el,
		attached:  isAttached(el),
		values:    b.valueSource(el),
	}, el)
}

// BindMethod parses args with the literal grammar and binds path to one
// event of el: the programmatic form of a markup binding.
//
//	b.BindMethod(button, "Click", "Orders.Save", "$0", "`draft`", 3)
func (b *Binder) BindMethod(el Element, event, path string, args ...any) (*Binding, error) {
	specs, err := literal.ParseAll(args...)
	if err != nil {
		return nil, err
	}
	decl, err := ir.NewDeclaration(path, specs, ir.WithEvents(event))
	if err != nil {
		return nil, err
	}
	return b.BindEvent(el, event, decl)
}

func (b *Binder) eventSource(el Element, event string) (EventSource, error) {
	source, ok := el.Event(event)
	if !ok {
		err := ir.NewMissingEventError(event)
		if lister, ok := el.(EventLister); ok {
			err.Suggestion = resolve.Suggest(event, lister.EventNames())
		}
		return nil, err
	}
	if sig := source.Signature(); sig == nil || sig.Kind() != reflect.Func {
		kind := reflect.Invalid
		if sig != nil {
			kind = sig.Kind()
		}
		return nil, newInvalidEventError(event, kind)
	}
	return source, nil
}

func (b *Binder) bindSource(p bindingParts, el Element) (*Binding, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		for _, cleanup := range p.cleanup {
			cleanup()
		}
		return nil, newClosedError()
	}

	if p.decl.Debounce() > 0 {
		p.dispatcher = b.dispatcher(el)
	}
	p.onClose = b.forget

	bd, err := newBinding(b.gen, b.cfg, p)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		bd.Close()
		return nil, newClosedError()
	}
	b.bindings = append(b.bindings, bd)
	b.mu.Unlock()
	return bd, nil
}

// dispatcher picks the execution context for debounced calls: the
// element's own, then the configured one, then the Binder's Loop.
func (b *Binder) dispatcher(el Element) Dispatcher {
	if dp, ok := el.(DispatcherProvider); ok {
		if d := dp.Dispatcher(); d != nil {
			return d
		}
	}
	if b.cfg.dispatcher != nil {
		return b.cfg.dispatcher
	}
	b.loopOnce.Do(func() {
		b.loop = NewLoop(b.cfg.logger)
		go func() {
			if err := b.loop.Run(context.Background()); err != nil {
				b.cfg.logger.Error("dispatcher loop stopped", "error", err)
			}
		}()
	})
	if b.loop == nil {
		// Closed before any loop was started; the binding is about to be
		// closed too.
		return DispatcherFunc(func(func()) {})
	}
	return b.loop
}

func (b *Binder) valueSource(el Element) ValueSource {
	if vp, ok := el.(ValueSourceProvider); ok {
		if vs := vp.ValueSource(); vs != nil {
			return vs
		}
	}
	return b.cfg.values
}

func isAttached(el Element) bool {
	if as, ok := el.(AttachState); ok {
		return as.IsAttached()
	}
	return true
}

// forget drops a closed binding from the live list.
func (b *Binder) forget(bd *Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = slices.DeleteFunc(b.bindings, func(x *Binding) bool { return x == bd })
}

// Bindings returns the live bindings created by this Binder. Closed
// bindings are not included.
func (b *Binder) Bindings() []*Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Binding(nil), b.bindings...)
}

// Close closes every binding and stops the default dispatcher. Queued
// debounced calls still run before the dispatcher goroutine exits.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	bindings := b.bindings
	b.bindings = nil
	b.mu.Unlock()

	for _, bd := range bindings {
		bd.Close()
	}
	// Marks the loop as started so no goroutine is spawned after Close.
	b.loopOnce.Do(func() {})
	if b.loop != nil {
		b.loop.Close()
	}
}
