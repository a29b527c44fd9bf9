package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eventbind/internal/ir"
)

// TraceSnapshot captures the deterministic part of a scenario execution.
// Signature keys and signatures are left out: they name Go package paths
// and would churn with every module move.
type TraceSnapshot struct {
	ScenarioName string
	Calls        []Call
	Observations []ir.Observation
	Syntheses    int64
	CacheHits    int64
}

// NewTraceSnapshot builds a snapshot of result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Calls:        result.Calls,
		Observations: result.Observations,
		Syntheses:    result.Stats.Syntheses,
		CacheHits:    result.Stats.Hits,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles primitives, slices and maps.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	calls := make([]any, len(s.Calls))
	for i, c := range s.Calls {
		calls[i] = map[string]any{
			"root":   c.Root,
			"method": c.Method,
			"args":   append([]string{}, c.Args...),
		}
	}

	obs := make([]any, len(s.Observations))
	for i, o := range s.Observations {
		m := map[string]any{
			"seq":  o.Seq,
			"kind": string(o.Kind),
		}
		if o.BindingID != "" {
			m["binding_id"] = o.BindingID
		}
		if o.Event != "" {
			m["event"] = o.Event
		}
		if o.Path != "" {
			m["path"] = o.Path
		}
		if o.Detail != "" {
			m["detail"] = o.Detail
		}
		obs[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"calls":         calls,
		"observations":  obs,
		"syntheses":     s.Syntheses,
		"cache_hits":    s.CacheHits,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
