// Package engine synthesizes event handlers from binding declarations.
//
// A Binder turns a BindingDeclaration into one Binding per event. Each
// Binding owns an adapter: a reflect.MakeFunc value of the event's func type
// that resolves its arguments and calls the target method found by walking
// the declaration's member path from the element's root.
//
// ARCHITECTURE:
//
// Generator (generator.go):
// Owns two caches. Templates are keyed by ResolvedSignature (event type,
// root type, path, argument types) and hold the resolved target, so path
// and method resolution run once per signature. No-op handlers are keyed by
// event type and stand in while an element has no root.
//
// Arguments (args.go):
// Literal values are snapshotted, positional references read the event's
// own parameters, bound values are pulled once per adapter instance from a
// ValueSource.
//
// Debouncer (debounce.go):
// Collapses bursts into one delayed call per binding. Expiry is posted to
// the Dispatcher captured when the binding was created, never run on the
// timer goroutine.
//
// Binding (binding.go):
// The lifecycle controller. Root changes, attach and detach are serialized
// by a per-binding mutex; there is no global lock.
//
// Thread-safety:
//   - Binder, Generator and Binding methods are safe from any goroutine
//   - Handler values may be invoked concurrently
//   - Cache synthesis is at-least-once; the insert is atomic, first writer wins
package engine
