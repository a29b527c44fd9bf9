package engine

import (
	"log/slog"

	"github.com/roach88/eventbind/internal/ir"
)

// Observer receives journal observations.
//
// Observe is called synchronously, possibly while a binding's lifecycle
// lock is held. Implementations must not call back into the Binder.
type Observer interface {
	Observe(o ir.Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(o ir.Observation)

// Observe calls f.
func (f ObserverFunc) Observe(o ir.Observation) { f(o) }

// config is shared by a Binder and its Generator.
type config struct {
	logger     *slog.Logger
	timers     AfterFunc
	dispatcher Dispatcher
	values     ValueSource
	cacheLimit int
	ids        IDGenerator
	observer   Observer
	clock      *Clock
}

// Option configures a Binder (and the Generator it owns).
type Option func(*config)

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTimers sets the timer factory used by debounce.
//
// Default: SystemTimers (time.AfterFunc)
// Tests pass a fake whose time only moves when told to.
func WithTimers(after AfterFunc) Option {
	return func(c *config) {
		c.timers = after
	}
}

// WithDispatcher sets the execution context debounced calls are posted to
// when the element does not provide one.
//
// Default: a Loop owned by the Binder, drained by its own goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(c *config) {
		c.dispatcher = d
	}
}

// WithValueSource sets the ValueSource for BoundValue arguments when the
// element does not provide one.
func WithValueSource(vs ValueSource) Option {
	return func(c *config) {
		c.values = vs
	}
}

// WithCacheLimit bounds the number of cached templates.
//
// Once the limit is reached new templates are still synthesized and used
// but no longer stored. Zero or negative means unbounded. The limit is
// soft: concurrent first accesses may overshoot it by the number of racing
// goroutines.
func WithCacheLimit(n int) Option {
	return func(c *config) {
		c.cacheLimit = n
	}
}

// WithIDGenerator sets the binding ID generator.
//
// Default: UUIDv7Generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *config) {
		c.ids = ids
	}
}

// WithObserver registers an Observer for lifecycle and cache observations.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// WithClock sets the logical clock that stamps observations.
//
// Default: NewClock()
func WithClock(clock *Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.timers == nil {
		c.timers = SystemTimers
	}
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	if c.clock == nil {
		c.clock = NewClock()
	}
	return c
}

// emit stamps o with the next clock value and hands it to the observer.
func (c *config) emit(o ir.Observation) {
	if c.observer == nil {
		return
	}
	o.Seq = c.clock.Next()
	c.observer.Observe(o)
}
