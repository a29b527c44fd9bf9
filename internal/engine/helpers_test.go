package engine_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/engine"
	"github.com/roach88/eventbind/internal/host"
	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/testutil"
)

// clickSig is the handler signature of the test elements' Click event.
var clickSig = reflect.TypeOf(func(sender any, label string) {})

type document struct {
	mu    sync.Mutex
	Title string
	saved []string
	calls []any
}

func (d *document) Save(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = append(d.saved, label)
}

func (d *document) Record(label string, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, label, n)
	return nil
}

func (d *document) Fail(label string) error {
	return assertError{label}
}

func (d *document) Explode(string) {
	panic("target exploded")
}

func (d *document) Saved() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.saved...)
}

func (d *document) Calls() []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]any(nil), d.calls...)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

type viewModel struct {
	Doc  *document
	Name string
}

// note has a Save method of a different signature than document's.
type note struct {
	mu    sync.Mutex
	lines []string
}

func (n *note) Save(label string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, label)
}

func (n *note) Lines() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

type noteModel struct {
	Doc *note
}

type fixture struct {
	binder     *engine.Binder
	element    *host.Element
	click      *host.Event
	timers     *testutil.FakeTimers
	dispatcher *testutil.ManualDispatcher
	observed   *observations
}

type observations struct {
	mu   sync.Mutex
	list []ir.Observation
}

func (o *observations) Observe(obs ir.Observation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
}

func (o *observations) kinds() []ir.ObservationKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	kinds := make([]ir.ObservationKind, len(o.list))
	for i, obs := range o.list {
		kinds[i] = obs.Kind
	}
	return kinds
}

func (o *observations) all() []ir.Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ir.Observation(nil), o.list...)
}

func newFixture(t *testing.T, elementOpts ...host.Option) *fixture {
	t.Helper()
	f := &fixture{
		timers:     testutil.NewFakeTimers(),
		dispatcher: testutil.NewManualDispatcher(),
		observed:   &observations{},
	}
	f.binder = engine.New(
		engine.WithTimers(f.timers.AfterFunc),
		engine.WithDispatcher(f.dispatcher),
		engine.WithIDGenerator(engine.NewSequenceGenerator("b")),
		engine.WithObserver(f.observed),
	)
	t.Cleanup(f.binder.Close)

	f.element = host.NewElement("button", elementOpts...)
	f.click = f.element.AddEvent("Click", clickSig)
	return f
}

func (f *fixture) bind(t *testing.T, path string, args ...any) *engine.Binding {
	t.Helper()
	b, err := f.binder.BindMethod(f.element, "Click", path, args...)
	require.NoError(t, err)
	return b
}

func declare(t *testing.T, path string, args []ir.ArgumentSpec, opts ...ir.DeclarationOption) *ir.BindingDeclaration {
	t.Helper()
	d, err := ir.NewDeclaration(path, args, opts...)
	require.NoError(t, err)
	return d
}
