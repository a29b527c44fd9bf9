package engine

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/resolve"
)

// Generator synthesizes handlers and owns the caches that make synthesis
// cheap.
//
// Two caches:
//   - templates: ir.SignatureID → *Template
//   - no-ops: event func type → shared no-op *Handler
//
// Caches belong to the Generator, never to the process; dropping the
// Generator drops them. A Binder owns one Generator.
//
// Thread-safety: all methods are safe for concurrent use. No lock surrounds
// synthesis. Two goroutines missing on the same key may both resolve the
// path; the insert is atomic (first writer wins) and the loser adopts the
// stored template, so callers always observe a single template per key.
type Generator struct {
	cfg *config

	templates sync.Map // ir.SignatureID → *Template
	noops     sync.Map // reflect.Type → *Handler
	size      atomic.Int64

	hits      atomic.Int64
	misses    atomic.Int64
	syntheses atomic.Int64
}

// CacheStats is a snapshot of Generator counters.
type CacheStats struct {
	Entries   int   // Templates currently stored
	Hits      int64 // Lookups served from the cache
	Misses    int64 // Lookups that had to resolve
	Syntheses int64 // Successful resolutions (>= stored templates)
}

// NewGenerator creates a standalone Generator. Only the logger, cache limit,
// observer and clock options apply.
func NewGenerator(opts ...Option) *Generator {
	return newGenerator(newConfig(opts))
}

func newGenerator(cfg *config) *Generator {
	return &Generator{cfg: cfg}
}

// Request describes one handler instantiation.
type Request struct {
	// Event is the event's handler func type.
	Event reflect.Type

	// Root is the object the declaration's path is resolved against. A nil
	// Root yields the shared no-op handler.
	Root any

	// Decl is the binding declaration.
	Decl *ir.BindingDeclaration

	// Values resolves BoundValue arguments. May be nil when Decl has none.
	Values ValueSource

	// Wrap, if set, wraps the call body (debounce, observation).
	Wrap func(call func(in []reflect.Value)) func(in []reflect.Value)

	// BindingID and EventName label observations.
	BindingID string
	EventName string
}

// Handler returns a handler for req.
//
// Arguments are resolved first (bound values are pulled here), then the
// template for the resulting signature is fetched or synthesized, then
// instantiated for req.Root. Structural errors are returned as
// *ir.BindError and nothing is cached for them.
func (g *Generator) Handler(req Request) (*Handler, error) {
	if req.Root == nil {
		return g.Noop(req.Event), nil
	}

	args, err := resolveArgs(req.Decl, req.Event, req.Root, req.Values)
	if err != nil {
		return nil, err
	}

	sig := ir.ResolvedSignature{
		Event: req.Event,
		Root:  reflect.TypeOf(req.Root),
		Path:  req.Decl.Path(),
		Args:  args.types,
	}
	tmpl, err := g.template(sig, req)
	if err != nil {
		return nil, err
	}

	call := tmpl.bind(req.Root, args, g.cfg.logger)
	if req.Wrap != nil {
		call = req.Wrap(call)
	}
	return newHandler(req.Event, call, tmpl), nil
}

// template fetches or synthesizes the template for sig.
func (g *Generator) template(sig ir.ResolvedSignature, req Request) (*Template, error) {
	id := sig.ID()
	if v, ok := g.templates.Load(id); ok {
		g.hits.Add(1)
		tmpl := v.(*Template)
		g.observe(ir.ObsCacheHit, tmpl, req)
		return tmpl, nil
	}
	g.misses.Add(1)

	target, err := resolve.Resolve(req.Root, sig.Path, sig.Args)
	if err != nil {
		return nil, err
	}
	g.syntheses.Add(1)

	tmpl := &Template{sig: sig, key: sig.Key(), target: target}
	g.cfg.logger.Debug("synthesized handler template",
		"signature", sig.String(),
		"receiver", target.ReceiverType(),
		"key", tmpl.key)
	g.observe(ir.ObsSynthesize, tmpl, req)

	if limit := g.cfg.cacheLimit; limit > 0 && g.size.Load() >= int64(limit) {
		g.cfg.logger.Debug("template cache full, not storing",
			"limit", limit,
			"signature", sig.String())
		return tmpl, nil
	}

	actual, loaded := g.templates.LoadOrStore(id, tmpl)
	if !loaded {
		g.size.Add(1)
	}
	return actual.(*Template), nil
}

func (g *Generator) observe(kind ir.ObservationKind, tmpl *Template, req Request) {
	g.cfg.emit(ir.Observation{
		Kind:         kind,
		BindingID:    req.BindingID,
		Event:        req.EventName,
		Path:         tmpl.sig.Path,
		SignatureKey: tmpl.key,
		Signature:    tmpl.sig.String(),
	})
}

// Noop returns the shared no-op handler for an event type.
func (g *Generator) Noop(event reflect.Type) *Handler {
	if v, ok := g.noops.Load(event); ok {
		return v.(*Handler)
	}
	h := newHandler(event, func([]reflect.Value) {}, nil)
	actual, _ := g.noops.LoadOrStore(event, h)
	return actual.(*Handler)
}

// Lookup returns the cached template for sig, if any. It does not count as
// a hit or a miss.
func (g *Generator) Lookup(sig ir.ResolvedSignature) (*Template, bool) {
	v, ok := g.templates.Load(sig.ID())
	if !ok {
		return nil, false
	}
	return v.(*Template), true
}

// Len returns the number of stored templates.
func (g *Generator) Len() int {
	return int(g.size.Load())
}

// Purge drops every stored template. Handlers already instantiated keep
// working; the next instantiation of each signature resolves again.
// No-op handlers are kept: they are bounded by the number of event types.
func (g *Generator) Purge() {
	g.templates.Range(func(k, _ any) bool {
		if _, loaded := g.templates.LoadAndDelete(k); loaded {
			g.size.Add(-1)
		}
		return true
	})
	g.cfg.logger.Debug("template cache purged")
}

// Stats returns a snapshot of the cache counters.
func (g *Generator) Stats() CacheStats {
	return CacheStats{
		Entries:   g.Len(),
		Hits:      g.hits.Load(),
		Misses:    g.misses.Load(),
		Syntheses: g.syntheses.Load(),
	}
}
