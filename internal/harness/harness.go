package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/eventbind/internal/compiler"
	"github.com/roach88/eventbind/internal/engine"
	"github.com/roach88/eventbind/internal/host"
	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/store"
	"github.com/roach88/eventbind/internal/testutil"
)

var decimalType = reflect.TypeFor[*apd.Decimal]()

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	store  *store.Store
	logger *slog.Logger
}

// WithStore journals the run's observations into st.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithLogger sets the logger handed to the Binder.
//
// Default: a logger that discards everything.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Harness is the scenario execution engine.
// Time is virtual and debounced calls wait in a manual dispatcher, so a
// scenario produces the same trace on every run.
type Harness struct {
	scenario   *Scenario
	decls      map[string]*ir.BindingDeclaration
	roots      map[string]*Model
	rec        *Recorder
	element    *host.Element
	timers     *testutil.FakeTimers
	dispatcher *testutil.ManualDispatcher
	binder     *engine.Binder
	journal    *store.Journal
	logger     *slog.Logger

	bound map[string][]*engine.Binding

	mu           sync.Mutex
	observations []ir.Observation
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile and validate the scenario's binding declarations
// 2. Build the roots, the element and a Binder with fake timers
// 3. Execute steps, recording unexpected outcomes as errors
// 4. Snapshot binding state, close the Binder and flush the journal
// 5. Evaluate assertions against the result
//
// An error is returned only when the scenario cannot be run at all.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	decls, err := loadDeclarations(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	h := &Harness{
		scenario:   scenario,
		decls:      decls,
		rec:        &Recorder{},
		timers:     testutil.NewFakeTimers(),
		dispatcher: testutil.NewManualDispatcher(),
		logger:     cfg.logger,
		bound:      make(map[string][]*engine.Binding),
	}
	if cfg.store != nil {
		h.journal, err = store.NewJournal(ctx, cfg.store, scenario.Name, store.WithJournalLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to start journal: %w", err)
		}
	}
	if err := h.setup(); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}

	h.snapshot(result)
	h.binder.Close()

	h.mu.Lock()
	result.Observations = append([]ir.Observation(nil), h.observations...)
	h.mu.Unlock()
	result.Calls = h.rec.Calls()

	if h.journal != nil {
		if err := h.journal.Flush(ctx); err != nil {
			return nil, fmt.Errorf("failed to flush journal: %w", err)
		}
		result.RunID = h.journal.Run().ID
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// loadDeclarations compiles every bindings file and the inline source,
// then validates them as one set.
func loadDeclarations(s *Scenario) (map[string]*ir.BindingDeclaration, error) {
	var all []*ir.BindingDeclaration
	for _, path := range s.Bindings {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read bindings: %w", err)
		}
		decls, err := compiler.CompileString(path, string(src))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s: %w", path, err)
		}
		all = append(all, decls...)
	}
	if s.Source != "" {
		decls, err := compiler.CompileString(s.Name+".cue", s.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to compile source: %w", err)
		}
		all = append(all, decls...)
	}

	if errs := compiler.Validate(all); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid bindings:\n  %s", strings.Join(msgs, "\n  "))
	}

	byName := make(map[string]*ir.BindingDeclaration, len(all))
	for _, d := range all {
		byName[d.Name()] = d
	}
	for i, step := range s.Steps {
		for _, name := range []string{step.Bind, step.Refresh, step.Close} {
			if name == "" {
				continue
			}
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("steps[%d]: unknown binding declaration %q", i, name)
			}
		}
	}
	return byName, nil
}

// setup builds the roots, the element and the Binder.
func (h *Harness) setup() error {
	h.roots = make(map[string]*Model, len(h.scenario.Roots))
	for _, r := range h.scenario.Roots {
		m := NewModel(r.Name, h.rec)
		m.Title = r.Title
		m.Count = r.Count
		h.roots[r.Name] = m
	}
	for _, r := range h.scenario.Roots {
		if r.Child != "" {
			h.roots[r.Name].Child = h.roots[r.Child]
		}
	}

	spec := h.scenario.Element
	opts := []host.Option{host.WithValueSource(host.NewPathValues())}
	if spec.Root != "" {
		opts = append(opts, host.WithRoot(h.roots[spec.Root]))
	}
	if spec.Detached {
		opts = append(opts, host.Detached())
	}
	h.element = host.NewElement(spec.Name, opts...)

	names := make([]string, 0, len(spec.Events))
	for name := range spec.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		params := make([]reflect.Type, len(spec.Events[name]))
		for i, p := range spec.Events[name] {
			t, ok := compiler.TypeByName(p)
			if !ok {
				return fmt.Errorf("event %s: unknown type %q", name, p)
			}
			params[i] = t
		}
		h.element.AddEvent(name, reflect.FuncOf(params, nil, false))
	}

	h.binder = engine.New(
		engine.WithLogger(h.logger),
		engine.WithTimers(h.timers.AfterFunc),
		engine.WithDispatcher(h.dispatcher),
		engine.WithIDGenerator(engine.NewSequenceGenerator("b")),
		engine.WithCacheLimit(h.scenario.CacheLimit),
		engine.WithObserver(engine.ObserverFunc(h.observe)),
	)
	return nil
}

func (h *Harness) observe(o ir.Observation) {
	h.mu.Lock()
	h.observations = append(h.observations, o)
	h.mu.Unlock()
	if h.journal != nil {
		h.journal.Observe(o)
	}
}

// execute runs one step.
func (h *Harness) execute(step Step) error {
	switch {
	case step.Bind != "":
		bindings, err := h.binder.Bind(h.element, h.decls[step.Bind])
		if err == nil {
			h.bound[step.Bind] = append(h.bound[step.Bind], bindings...)
		}
		return expectError("bind "+step.Bind, step.ExpectError, err)

	case step.Fire != "":
		return h.fire(step.Fire, step.Args)

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.timers.Advance(d)

	case step.RunPending:
		h.dispatcher.RunPending()

	case step.SetRoot != "":
		h.element.SetRoot(h.roots[step.SetRoot])

	case step.ClearRoot:
		h.element.SetRoot(nil)

	case step.Attach:
		h.element.Attach()

	case step.Detach:
		h.element.Detach()

	case step.Refresh != "":
		var errs []error
		for _, b := range h.bound[step.Refresh] {
			if err := b.Refresh(); err != nil {
				errs = append(errs, err)
			}
		}
		return expectError("refresh "+step.Refresh, step.ExpectError, errors.Join(errs...))

	case step.Close != "":
		for _, b := range h.bound[step.Close] {
			b.Close()
		}

	case step.Purge:
		h.binder.Generator().Purge()

	default:
		return fmt.Errorf("step has no action")
	}
	return nil
}

// fire raises event with args converted to its parameter types. A panic
// from a handler is reported as the step's error.
func (h *Harness) fire(event string, args []any) (err error) {
	ev, ok := h.element.Lookup(event)
	if !ok {
		return fmt.Errorf("element has no event %q", event)
	}
	sig := ev.Signature()
	if len(args) != sig.NumIn() {
		return fmt.Errorf("event %s takes %d argument(s), got %d", event, sig.NumIn(), len(args))
	}
	converted := make([]any, len(args))
	for i, a := range args {
		v, err := convertArg(a, sig.In(i))
		if err != nil {
			return fmt.Errorf("fire %s: argument %d: %w", event, i, err)
		}
		converted[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fire %s: handler panicked: %v", event, r)
		}
	}()
	ev.Raise(converted...)
	return nil
}

// convertArg converts a YAML scalar to parameter type t. Numbers convert
// between numeric kinds only; decimals parse from strings or numbers.
func convertArg(a any, t reflect.Type) (any, error) {
	if a == nil {
		return nil, nil
	}
	if t == decimalType {
		d, _, err := apd.NewFromString(fmt.Sprint(a))
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %v: %w", a, err)
		}
		return d, nil
	}

	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return a, nil
	}
	if isNumeric(v.Kind()) && isNumeric(t.Kind()) {
		return v.Convert(t).Interface(), nil
	}
	return nil, fmt.Errorf("cannot pass %T as %s", a, t)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// expectError compares err against the expected error code.
func expectError(what, want string, err error) error {
	switch {
	case want == "" && err != nil:
		return fmt.Errorf("%s: %w", what, err)
	case want == "":
		return nil
	case err == nil:
		return fmt.Errorf("%s: expected %s error, got none", what, want)
	}
	if got := errorCode(err); got != want {
		return fmt.Errorf("%s: expected %s error, got %s (%v)", what, want, got, err)
	}
	return nil
}

// errorCode extracts a binding or engine error code.
func errorCode(err error) string {
	if c := ir.CodeOf(err); c != "" {
		return string(c)
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return ""
}

// snapshot records binding state, cache counters and subscriber counts.
func (h *Harness) snapshot(result *Result) {
	names := make([]string, 0, len(h.bound))
	for name := range h.bound {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, b := range h.bound[name] {
			st := BindingStatus{
				Decl:        name,
				Event:       b.EventName(),
				ID:          b.ID(),
				State:       b.State(),
				Generations: b.Generations(),
			}
			if err := b.Err(); err != nil {
				st.Err = err.Error()
			}
			result.Bindings = append(result.Bindings, st)
		}
	}

	result.Stats = h.binder.Generator().Stats()
	for name := range h.scenario.Element.Events {
		if ev, ok := h.element.Lookup(name); ok {
			result.Subscribers[name] = ev.Count()
		}
	}
}
