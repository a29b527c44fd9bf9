package engine

import (
	"fmt"
	"reflect"
)

// Handler is a synthesized adapter: a func value of an event's signature.
//
// Handlers are compared by pointer; an EventSource uses the *Handler it was
// given to unsubscribe. Invoking a handler is safe from any goroutine.
type Handler struct {
	fn   reflect.Value
	tmpl *Template // nil for no-op handlers
}

// newHandler wraps call in a func value of the event type. Results of the
// event type, if any, are returned as zero values.
func newHandler(event reflect.Type, call func(in []reflect.Value), tmpl *Template) *Handler {
	outs := make([]reflect.Value, event.NumOut())
	for i := range outs {
		outs[i] = reflect.Zero(event.Out(i))
	}
	fn := reflect.MakeFunc(event, func(in []reflect.Value) []reflect.Value {
		call(in)
		return outs
	})
	return &Handler{fn: fn, tmpl: tmpl}
}

// Func returns the handler as a reflect.Value of its event signature.
func (h *Handler) Func() reflect.Value { return h.fn }

// Interface returns the handler as a func value, for type assertion to the
// concrete event signature (e.g. h.Interface().(func(any, string))).
func (h *Handler) Interface() any { return h.fn.Interface() }

// Signature returns the event func type.
func (h *Handler) Signature() reflect.Type { return h.fn.Type() }

// IsNoop reports whether this is the stand-in used while no root is available.
func (h *Handler) IsNoop() bool { return h.tmpl == nil }

// Template returns the cached template this handler was instantiated
// from, or nil for no-op handlers.
func (h *Handler) Template() *Template { return h.tmpl }

// Invoke calls the handler with loosely typed arguments. nil becomes the
// zero value of the parameter type. Arity and assignability mismatches
// panic, as reflect.Value.Call does.
func (h *Handler) Invoke(args ...any) {
	ft := h.fn.Type()
	if len(args) != ft.NumIn() {
		panic(fmt.Sprintf("engine: handler %s called with %d argument(s)", ft, len(args)))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	h.fn.Call(in)
}
