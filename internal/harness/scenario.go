package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eventbind/internal/compiler"
)

// Scenario defines a binding test scenario.
// Scenarios declare bindings, drive a host element through a sequence of
// steps, and assert on the recorded calls, observations and final state.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bindings lists CUE files holding binding declarations.
	// Paths are relative to the scenario file location.
	Bindings []string `yaml:"bindings,omitempty"`

	// Source is inline CUE, compiled after the Bindings files.
	Source string `yaml:"source,omitempty"`

	// Element describes the host element the bindings attach to.
	Element ElementSpec `yaml:"element"`

	// Roots are the models the element root can point at.
	Roots []RootSpec `yaml:"roots,omitempty"`

	// CacheLimit bounds the template cache; zero means unbounded.
	CacheLimit int `yaml:"cache_limit,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the outcome after every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// ElementSpec describes the host element.
type ElementSpec struct {
	// Name labels the element.
	Name string `yaml:"name"`

	// Root names the initial root model; empty means no root.
	Root string `yaml:"root,omitempty"`

	// Detached starts the element detached.
	Detached bool `yaml:"detached,omitempty"`

	// Events maps event names to their parameter type names
	// (see compiler.TypeNames).
	Events map[string][]string `yaml:"events"`
}

// RootSpec declares a Model.
type RootSpec struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Child names another root assigned to Model.Child.
	Child string `yaml:"child,omitempty"`
}

// Step is one scenario action. Exactly one action field is set.
type Step struct {
	// Bind binds the named declaration to every event it lists.
	Bind string `yaml:"bind,omitempty"`

	// Fire raises the named event with Args.
	Fire string `yaml:"fire,omitempty"`
	Args []any  `yaml:"args,omitempty"`

	// Advance moves virtual time forward ("200ms").
	Advance string `yaml:"advance,omitempty"`

	// RunPending drains the dispatcher queue.
	RunPending bool `yaml:"run_pending,omitempty"`

	// SetRoot points the element root at the named model.
	SetRoot string `yaml:"set_root,omitempty"`

	// ClearRoot removes the element root.
	ClearRoot bool `yaml:"clear_root,omitempty"`

	Attach bool `yaml:"attach,omitempty"`
	Detach bool `yaml:"detach,omitempty"`

	// Refresh regenerates every binding of the named declaration.
	Refresh string `yaml:"refresh,omitempty"`

	// Close closes every binding of the named declaration.
	Close string `yaml:"close,omitempty"`

	// Purge drops every cached template.
	Purge bool `yaml:"purge,omitempty"`

	// ExpectError is the error code a bind or refresh step must fail
	// with. Without it such a step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "calls": the recorded calls equal Calls exactly
	// - "call_count": Method was called exactly Count times
	// - "syntheses": the generator synthesized exactly Count templates
	// - "templates": the cache holds exactly Count templates
	// - "observations": exactly Count observations of Kind were emitted
	// - "state": the Binding of Decl for Event is in State
	// - "subscribers": Event has exactly Count subscribed handlers
	Type string `yaml:"type"`

	Calls  []Call `yaml:"calls,omitempty"`
	Method string `yaml:"method,omitempty"`
	Count  int    `yaml:"count"`
	Kind   string `yaml:"kind,omitempty"`
	Decl   string `yaml:"decl,omitempty"`
	Event  string `yaml:"event,omitempty"`
	State  string `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertCalls        = "calls"
	AssertCallCount    = "call_count"
	AssertSyntheses    = "syntheses"
	AssertTemplates    = "templates"
	AssertObservations = "observations"
	AssertState        = "state"
	AssertSubscribers  = "subscribers"
)

// LoadScenario reads and parses a scenario YAML file.
// Bindings paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving Bindings paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve binding paths BEFORE validation
	for i, p := range scenario.Bindings {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Bindings[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Bindings) == 0 && s.Source == "" {
		return fmt.Errorf("bindings or source is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.CacheLimit < 0 {
		return fmt.Errorf("cache_limit must be non-negative")
	}

	for _, p := range s.Bindings {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("bindings file not found: %s", p)
		}
	}

	roots := make(map[string]bool, len(s.Roots))
	for i, r := range s.Roots {
		if r.Name == "" {
			return fmt.Errorf("roots[%d]: name is required", i)
		}
		if roots[r.Name] {
			return fmt.Errorf("roots[%d]: duplicate root %q", i, r.Name)
		}
		roots[r.Name] = true
	}
	for i, r := range s.Roots {
		if r.Child != "" && !roots[r.Child] {
			return fmt.Errorf("roots[%d]: unknown child %q", i, r.Child)
		}
	}

	if s.Element.Name == "" {
		return fmt.Errorf("element: name is required")
	}
	if s.Element.Root != "" && !roots[s.Element.Root] {
		return fmt.Errorf("element: unknown root %q", s.Element.Root)
	}
	if len(s.Element.Events) == 0 {
		return fmt.Errorf("element: events map is required and must be non-empty")
	}
	for name, params := range s.Element.Events {
		for j, p := range params {
			if _, ok := compiler.TypeByName(p); !ok {
				return fmt.Errorf("element.events.%s[%d]: unknown type %q (want one of %v)", name, j, p, compiler.TypeNames())
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, roots, s.Element.Events); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that exactly one action is set and that it refers
// to something the scenario declares.
func validateStep(index int, st *Step, roots map[string]bool, events map[string][]string) error {
	actions := 0
	for _, set := range []bool{
		st.Bind != "", st.Fire != "", st.Advance != "", st.RunPending,
		st.SetRoot != "", st.ClearRoot, st.Attach, st.Detach,
		st.Refresh != "", st.Close != "", st.Purge,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, actions)
	}

	if st.Fire != "" {
		params, ok := events[st.Fire]
		if !ok {
			return fmt.Errorf("steps[%d]: element has no event %q", index, st.Fire)
		}
		if len(st.Args) != len(params) {
			return fmt.Errorf("steps[%d]: event %s takes %d argument(s), got %d", index, st.Fire, len(params), len(st.Args))
		}
	} else if len(st.Args) > 0 {
		return fmt.Errorf("steps[%d]: args are only valid on fire", index)
	}

	if st.Advance != "" {
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: advance must not be negative", index)
		}
	}
	if st.SetRoot != "" && !roots[st.SetRoot] {
		return fmt.Errorf("steps[%d]: unknown root %q", index, st.SetRoot)
	}
	if st.ExpectError != "" && st.Bind == "" && st.Refresh == "" {
		return fmt.Errorf("steps[%d]: expect_error is only valid on bind and refresh", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertCalls, AssertSyntheses, AssertTemplates:
	case AssertCallCount:
		if a.Method == "" {
			return fmt.Errorf("assertions[%d]: method is required for call_count", index)
		}
	case AssertObservations:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for observations", index)
		}
	case AssertState:
		if a.Decl == "" || a.Event == "" {
			return fmt.Errorf("assertions[%d]: decl and event are required for state", index)
		}
		if a.State != "bound" && a.State != "unbound" {
			return fmt.Errorf("assertions[%d]: state must be bound or unbound, got %q", index, a.State)
		}
	case AssertSubscribers:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for subscribers", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
