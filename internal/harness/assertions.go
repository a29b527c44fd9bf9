package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/eventbind/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Diff     string // cmp.Diff output (-want +got), if computed
	Calls    []Call // Recorded calls for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff (-want +got):\n%s", e.Diff)
	}

	fmt.Fprintf(&buf, "\nRecorded calls:\n")
	for i, c := range e.Calls {
		fmt.Fprintf(&buf, "  [%d] %s.%s(%s)\n", i+1, c.Root, c.Method, strings.Join(c.Args, ", "))
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCalls:
		return assertCalls(result, a)
	case AssertCallCount:
		return assertCallCount(result, a)
	case AssertSyntheses:
		return assertCount(result, a, "templates synthesized", int(result.Stats.Syntheses))
	case AssertTemplates:
		return assertCount(result, a, "cached templates", result.Stats.Entries)
	case AssertObservations:
		return assertCount(result, a, a.Kind+" observations", countKind(result.Observations, ir.ObservationKind(a.Kind)))
	case AssertState:
		return assertState(result, a)
	case AssertSubscribers:
		return assertCount(result, a, "subscribers of "+a.Event, result.Subscribers[a.Event])
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertCalls checks the recorded calls match exactly, in order.
func assertCalls(result *Result, a Assertion) error {
	if diff := cmp.Diff(a.Calls, result.Calls, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertCalls,
			Expected: fmt.Sprintf("%d call(s)", len(a.Calls)),
			Actual:   fmt.Sprintf("%d call(s)", len(result.Calls)),
			Diff:     diff,
			Calls:    result.Calls,
		}
	}
	return nil
}

// assertCallCount checks the method was called exactly the specified number of times.
func assertCallCount(result *Result, a Assertion) error {
	count := 0
	for _, c := range result.Calls {
		if c.Method == a.Method {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d call(s) of %s", a.Count, a.Method),
			Actual:   fmt.Sprintf("%d call(s)", count),
			Calls:    result.Calls,
		}
	}
	return nil
}

func assertCount(result *Result, a Assertion, what string, got int) error {
	if got != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", got),
			Calls:    result.Calls,
		}
	}
	return nil
}

// assertState checks the lifecycle state of a declaration's binding.
func assertState(result *Result, a Assertion) error {
	b, ok := result.Binding(a.Decl, a.Event)
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("binding of %s for %s", a.Decl, a.Event),
			Actual:   "not bound",
			Calls:    result.Calls,
		}
	}
	if got := b.State.String(); got != a.State {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s binding of %s for %s", a.State, a.Decl, a.Event),
			Actual:   got,
			Calls:    result.Calls,
		}
	}
	return nil
}

func countKind(obs []ir.Observation, kind ir.ObservationKind) int {
	n := 0
	for _, o := range obs {
		if o.Kind == kind {
			n++
		}
	}
	return n
}
