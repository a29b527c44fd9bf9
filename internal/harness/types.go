package harness

import (
	"github.com/roach88/eventbind/internal/engine"
	"github.com/roach88/eventbind/internal/ir"
)

// BindingStatus is the state of one binding when the last step finished.
type BindingStatus struct {
	Decl        string            `json:"decl"`
	Event       string            `json:"event"`
	ID          string            `json:"id"`
	State       ir.LifecycleState `json:"state"`
	Generations int               `json:"generations"`
	Err         string            `json:"err,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Calls are the Model method calls in call order.
	Calls []Call `json:"calls"`

	// Observations are every engine observation in sequence order,
	// including the unsubscribes emitted when the run tears down.
	Observations []ir.Observation `json:"observations"`

	// Bindings are snapshotted before teardown.
	Bindings []BindingStatus `json:"bindings"`

	// Stats are the generator counters before teardown.
	Stats engine.CacheStats `json:"stats"`

	// Subscribers counts handlers per event before teardown.
	Subscribers map[string]int `json:"subscribers"`

	// RunID is the journal run, when the scenario ran against a store.
	RunID string `json:"run_id,omitempty"`

	// Errors contains step and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Calls:       []Call{},
		Errors:      []string{},
		Subscribers: make(map[string]int),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Binding returns the status of decl's latest binding for event, if any.
func (r *Result) Binding(decl, event string) (BindingStatus, bool) {
	for i := len(r.Bindings) - 1; i >= 0; i-- {
		if b := r.Bindings[i]; b.Decl == decl && b.Event == event {
			return b, true
		}
	}
	return BindingStatus{}, false
}
