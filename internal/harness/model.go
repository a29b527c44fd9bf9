package harness

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/apd/v3"
)

// Call is one recorded invocation of a Model method.
type Call struct {
	Root   string   `json:"root" yaml:"root"`
	Method string   `json:"method" yaml:"method"`
	Args   []string `json:"args" yaml:"args"`
}

// Recorder collects calls from every Model of a run, in call order.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) record(root, method string, args ...any) {
	formatted := make([]string, len(args))
	for i, a := range args {
		formatted[i] = formatArg(a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Root: root, Method: method, Args: formatted})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// formatArg renders an argument the way golden traces store it. Floats
// and decimals become strings since canonical JSON has no floats.
func formatArg(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return x
	case *apd.Decimal:
		if x == nil {
			return "<nil>"
		}
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Model is the root object scenarios bind against.
//
// Its method set covers the argument shapes bindings exercise: strings,
// ints, multiple parameters, bools, floats, decimals, no parameters and
// interface parameters. Child lets paths traverse to a nested model.
type Model struct {
	Name  string
	Title string
	Count int
	Child *Model

	rec *Recorder
}

// NewModel creates a model that records into rec.
func NewModel(name string, rec *Recorder) *Model {
	return &Model{Name: name, rec: rec}
}

func (m *Model) Save(text string)              { m.rec.record(m.Name, "Save", text) }
func (m *Model) SaveInt(n int)                 { m.rec.record(m.Name, "SaveInt", n) }
func (m *Model) Add(a, b int)                  { m.rec.record(m.Name, "Add", a, b) }
func (m *Model) Select(item string, index int) { m.rec.record(m.Name, "Select", item, index) }
func (m *Model) Toggle(on bool)                { m.rec.record(m.Name, "Toggle", on) }
func (m *Model) Scale(f float64)               { m.rec.record(m.Name, "Scale", f) }
func (m *Model) Price(d *apd.Decimal)          { m.rec.record(m.Name, "Price", d) }
func (m *Model) Refresh()                      { m.rec.record(m.Name, "Refresh") }
func (m *Model) Notify(v any)                  { m.rec.record(m.Name, "Notify", v) }

// Rename records the call and reports an error for an empty name. The
// error is discarded by the binding.
func (m *Model) Rename(title string) error {
	m.rec.record(m.Name, "Rename", title)
	if title == "" {
		return fmt.Errorf("title must not be empty")
	}
	m.Title = title
	return nil
}
