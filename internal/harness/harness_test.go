package harness

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/store"
)

const editorSource = `
bindings: {
	save: {event: "Click", path: "Save", args: ["$1"]}
	price: {event: "Click", path: "Price", args: ["12.50m"]}
	scale: {event: "Scaled", path: "Scale", args: ["$0"]}
	rename: {event: "Click", path: "Rename", args: [{bind: "Title"}]}
	broken: {event: "Click", path: "Missing"}
}
`

// editorScenario returns a scenario over editorSource with an editor
// element, roots main and other, and the given steps and assertions.
func editorScenario(name string, steps []Step, assertions ...Assertion) *Scenario {
	return &Scenario{
		Name:        name,
		Description: name,
		Source:      editorSource,
		Element: ElementSpec{
			Name: "editor",
			Root: "main",
			Events: map[string][]string{
				"Click":  {"any", "string"},
				"Scaled": {"float64"},
			},
		},
		Roots: []RootSpec{
			{Name: "main", Title: "Draft"},
			{Name: "other", Title: "Final"},
		},
		Steps:      steps,
		Assertions: assertions,
	}
}

func click(text string) Step { return Step{Fire: "Click", Args: []any{nil, text}} }

func requirePass(t *testing.T, result *Result) {
	t.Helper()
	require.True(t, result.Pass, strings.Join(result.Errors, "\n"))
}

func kinds(obs []ir.Observation) []ir.ObservationKind {
	out := make([]ir.ObservationKind, len(obs))
	for i, o := range obs {
		out[i] = o.Kind
	}
	return out
}

func TestRun_TestdataScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			requirePass(t, result)
		})
	}
}

func TestRun_ClickCallsTarget(t *testing.T) {
	scenario := editorScenario("click",
		[]Step{{Bind: "save"}, click("hello")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Save", Args: []string{"hello"}}}},
		Assertion{Type: AssertState, Decl: "save", Event: "Click", State: "bound"},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	require.Len(t, result.Bindings, 1)
	assert.Equal(t, "b-1", result.Bindings[0].ID)
	assert.Equal(t, 1, result.Bindings[0].Generations)
	assert.Equal(t, 1, result.Subscribers["Click"])
	assert.Equal(t, 0, result.Subscribers["Scaled"])
}

func TestRun_FailedAssertionMarksResult(t *testing.T) {
	scenario := editorScenario("wrong",
		[]Step{{Bind: "save"}, click("hello")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Save", Args: []string{"bye"}}}},
		Assertion{Type: AssertCallCount, Method: "Save", Count: 2},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Assertion failed: calls")
	assert.Contains(t, result.Errors[0], "bye")
	assert.Contains(t, result.Errors[1], "2 call(s) of Save")
}

func TestRun_ExpectedBindError(t *testing.T) {
	scenario := editorScenario("broken",
		[]Step{{Bind: "broken", ExpectError: string(ir.ErrCodeMissingMethod)}, click("x")},
		Assertion{Type: AssertCalls},
		Assertion{Type: AssertSyntheses, Count: 0},
		Assertion{Type: AssertSubscribers, Event: "Click", Count: 0},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
	assert.Empty(t, result.Bindings)
}

func TestRun_UnexpectedBindError(t *testing.T) {
	scenario := editorScenario("broken",
		[]Step{{Bind: "broken"}},
		Assertion{Type: AssertSyntheses, Count: 0},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0]: bind broken")
	assert.Contains(t, result.Errors[0], "MISSING_METHOD")
}

func TestRun_WrongExpectedCode(t *testing.T) {
	scenario := editorScenario("broken",
		[]Step{{Bind: "broken", ExpectError: string(ir.ErrCodeParse)}},
		Assertion{Type: AssertSyntheses, Count: 0},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected PARSE_ERROR error, got MISSING_METHOD")
}

func TestRun_NoRootSubscribesNoop(t *testing.T) {
	scenario := editorScenario("no_root",
		[]Step{{Bind: "save"}, click("dropped"), {SetRoot: "main"}, click("kept")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Save", Args: []string{"kept"}}}},
		Assertion{Type: AssertSyntheses, Count: 1},
	)
	scenario.Element.Root = ""

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	assert.Equal(t, []ir.ObservationKind{
		ir.ObsSubscribe,
		ir.ObsRootChange,
		ir.ObsSynthesize,
		ir.ObsUnsubscribe,
		ir.ObsSubscribe,
		ir.ObsInvoke,
		ir.ObsUnsubscribe,
	}, kinds(result.Observations))
	assert.Equal(t, "noop", result.Observations[0].Detail)
	assert.Equal(t, "noop", result.Observations[3].Detail)
	assert.Empty(t, result.Observations[4].Detail)
}

func TestRun_ClearRootFallsBackToNoop(t *testing.T) {
	scenario := editorScenario("clear_root",
		[]Step{{Bind: "save"}, click("a"), {ClearRoot: true}, click("b")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Save", Args: []string{"a"}}}},
		Assertion{Type: AssertState, Decl: "save", Event: "Click", State: "bound"},
		Assertion{Type: AssertSubscribers, Event: "Click", Count: 1},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_RootChangeReusesTemplate(t *testing.T) {
	scenario := editorScenario("root_change",
		[]Step{{Bind: "save"}, click("a"), {SetRoot: "other"}, click("b")},
		Assertion{Type: AssertCalls, Calls: []Call{
			{Root: "main", Method: "Save", Args: []string{"a"}},
			{Root: "other", Method: "Save", Args: []string{"b"}},
		}},
		Assertion{Type: AssertSyntheses, Count: 1},
		Assertion{Type: AssertObservations, Kind: string(ir.ObsCacheHit), Count: 1},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	b, ok := result.Binding("save", "Click")
	require.True(t, ok)
	assert.Equal(t, 2, b.Generations)
}

func TestRun_DetachedElementDropsEvents(t *testing.T) {
	scenario := editorScenario("detached",
		[]Step{{Bind: "save"}, click("a"), {Attach: true}, click("b")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Save", Args: []string{"b"}}}},
	)
	scenario.Element.Detached = true

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_RefreshRegenerates(t *testing.T) {
	scenario := editorScenario("refresh",
		[]Step{{Bind: "rename"}, click("ignored"), {Refresh: "rename"}, click("ignored")},
		Assertion{Type: AssertCalls, Calls: []Call{
			{Root: "main", Method: "Rename", Args: []string{"Draft"}},
			{Root: "main", Method: "Rename", Args: []string{"Draft"}},
		}},
		Assertion{Type: AssertObservations, Kind: string(ir.ObsRootChange), Count: 1},
		Assertion{Type: AssertObservations, Kind: string(ir.ObsCacheHit), Count: 1},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)

	b, ok := result.Binding("rename", "Click")
	require.True(t, ok)
	assert.Equal(t, 2, b.Generations)
}

func TestRun_CloseStopsCalls(t *testing.T) {
	scenario := editorScenario("close",
		[]Step{{Bind: "save"}, {Close: "save"}, click("x")},
		Assertion{Type: AssertCalls},
		Assertion{Type: AssertState, Decl: "save", Event: "Click", State: "unbound"},
		Assertion{Type: AssertSubscribers, Event: "Click", Count: 0},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_PurgeForcesResynthesis(t *testing.T) {
	scenario := editorScenario("purge",
		[]Step{{Bind: "save"}, {Purge: true}, {SetRoot: "other"}, click("x")},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "other", Method: "Save", Args: []string{"x"}}}},
		Assertion{Type: AssertSyntheses, Count: 2},
		Assertion{Type: AssertTemplates, Count: 1},
		Assertion{Type: AssertObservations, Kind: string(ir.ObsCacheHit), Count: 0},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_CacheLimit(t *testing.T) {
	scenario := editorScenario("cache_limit",
		[]Step{{Bind: "save"}, {Bind: "price"}, click("x")},
		Assertion{Type: AssertCalls, Calls: []Call{
			{Root: "main", Method: "Save", Args: []string{"x"}},
			{Root: "main", Method: "Price", Args: []string{"12.50"}},
		}},
		Assertion{Type: AssertSyntheses, Count: 2},
		Assertion{Type: AssertTemplates, Count: 1},
	)
	scenario.CacheLimit = 1

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_FireConvertsNumbers(t *testing.T) {
	scenario := editorScenario("scale",
		[]Step{{Bind: "scale"}, {Fire: "Scaled", Args: []any{2}}},
		Assertion{Type: AssertCalls, Calls: []Call{{Root: "main", Method: "Scale", Args: []string{"2"}}}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	requirePass(t, result)
}

func TestRun_FireRejectsUnconvertibleArgument(t *testing.T) {
	scenario := editorScenario("scale",
		[]Step{{Bind: "scale"}, {Fire: "Scaled", Args: []any{"two"}}},
		Assertion{Type: AssertCalls},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "cannot pass string as float64")
}

func TestRun_CompileError(t *testing.T) {
	scenario := editorScenario("bad_cue", []Step{{Purge: true}}, Assertion{Type: AssertCalls})
	scenario.Source = `bindings: save: {event: "Click", path: "Save", args: [null]}`

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile source")
}

func TestRun_ValidationError(t *testing.T) {
	scenario := editorScenario("bad_index", []Step{{Purge: true}}, Assertion{Type: AssertCalls})
	scenario.Source = `bindings: save: {event: "Click", path: "Save", args: ["$9"]}`

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bindings")
	assert.Contains(t, err.Error(), "E107")
}

func TestRun_UnknownDeclaration(t *testing.T) {
	scenario := editorScenario("unknown", []Step{{Bind: "nope"}}, Assertion{Type: AssertCalls})

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown binding declaration "nope"`)
}

func TestRun_WithStoreJournalsObservations(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	scenario := editorScenario("journaled",
		[]Step{{Bind: "save"}, click("a"), {SetRoot: "other"}, click("b")},
		Assertion{Type: AssertCallCount, Method: "Save", Count: 2},
	)

	result, err := Run(scenario, WithStore(st))
	require.NoError(t, err)
	requirePass(t, result)
	require.NotEmpty(t, result.RunID)

	ctx := context.Background()
	run, err := st.ReadRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "journaled", run.Name)

	stored, err := st.ReadObservations(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Observations, stored)

	states, err := st.ReplayBindings(ctx, result.RunID)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "b-1", states[0].BindingID)
	assert.Equal(t, ir.StateUnbound, states[0].State)
	assert.Equal(t, 2, states[0].Invocations)
	assert.Equal(t, 1, states[0].RootChanges)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/debounced_search.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Calls, second.Calls)
	assert.Equal(t, first.Observations, second.Observations)
}

func TestConvertArg(t *testing.T) {
	tests := []struct {
		name    string
		arg     any
		typ     reflect.Type
		want    any
		wantErr string
	}{
		{name: "nil", arg: nil, typ: reflect.TypeFor[string](), want: nil},
		{name: "assignable", arg: "x", typ: reflect.TypeFor[string](), want: "x"},
		{name: "into any", arg: 3, typ: reflect.TypeFor[any](), want: 3},
		{name: "int to int64", arg: 3, typ: reflect.TypeFor[int64](), want: int64(3)},
		{name: "float to float32", arg: 1.5, typ: reflect.TypeFor[float32](), want: float32(1.5)},
		{name: "string to int", arg: "3", typ: reflect.TypeFor[int](), wantErr: "cannot pass string as int"},
		{name: "int to string", arg: 65, typ: reflect.TypeFor[string](), wantErr: "cannot pass int as string"},
		{name: "bad decimal", arg: "abc", typ: decimalType, wantErr: "invalid decimal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convertArg(tt.arg, tt.typ)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertArg_Decimal(t *testing.T) {
	got, err := convertArg("12.50", decimalType)
	require.NoError(t, err)
	d, ok := got.(*apd.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12.50", d.String())
}
