package engine

import (
	"reflect"
)

// EventSource is one event of a host element.
//
// Signature is the event's handler func type; handlers passed to Subscribe
// are reflect.MakeFunc values of exactly that type. The same *Handler may
// be subscribed more than once (no-op handlers are shared per signature),
// so sources must keep a multiset and Unsubscribe must remove a single
// occurrence.
type EventSource interface {
	Signature() reflect.Type
	Subscribe(h *Handler)
	Unsubscribe(h *Handler)
}

// RootProvider supplies the object member paths are resolved against.
//
// Root returns nil when no root is available. OnRootChanged registers a
// callback invoked with the new root after every assignment; the engine
// compares identity itself, so providers may report assignments that did
// not change anything. The returned func cancels the registration.
type RootProvider interface {
	Root() any
	OnRootChanged(fn func(root any)) (cancel func())
}

// ValueSource resolves BoundValue descriptors.
//
// Resolve is called once per adapter instance per slot, synchronously, with
// the root the adapter is being built for. slot is the argument's position
// within the declaration.
type ValueSource interface {
	Resolve(descriptor any, root any, slot int) (any, error)
}

// ValueSourceFunc adapts a function to ValueSource.
type ValueSourceFunc func(descriptor any, root any, slot int) (any, error)

// Resolve calls f.
func (f ValueSourceFunc) Resolve(descriptor any, root any, slot int) (any, error) {
	return f(descriptor, root, slot)
}

// LifecycleSignals reports when the host element enters or leaves the
// live tree. The returned funcs cancel the registration.
type LifecycleSignals interface {
	OnAttach(fn func()) (cancel func())
	OnDetach(fn func()) (cancel func())
}

// Element is a host element that bindings are attached to.
type Element interface {
	RootProvider
	LifecycleSignals
	Event(name string) (EventSource, bool)
}

// Optional Element capabilities.
type (
	// AttachState reports whether the element is attached right now.
	// Elements without it are assumed attached when a binding is created.
	AttachState interface {
		IsAttached() bool
	}

	// DispatcherProvider supplies the execution context debounced calls
	// are posted to.
	DispatcherProvider interface {
		Dispatcher() Dispatcher
	}

	// ValueSourceProvider supplies the element's own ValueSource.
	ValueSourceProvider interface {
		ValueSource() ValueSource
	}

	// EventLister lists event names, used for "did you mean" hints.
	EventLister interface {
		EventNames() []string
	}

	// Enabler receives the CanExecute state of a bound command.
	Enabler interface {
		SetEnabled(enabled bool)
	}
)
