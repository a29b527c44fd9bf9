package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/query"
	"github.com/roach88/eventbind/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string   // optional - defaults to the latest run
	Binding  string   // optional - filter to one binding ID
	Event    string   // optional - filter to one event name
	Kinds    []string // optional - filter to observation kinds
}

// TraceTemplate summarizes one signature key of a run.
type TraceTemplate struct {
	Signature string `json:"signature"`
	Path      string `json:"path"`
	Syntheses int    `json:"syntheses"`
	Hits      int    `json:"hits"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID     string           `json:"run_id"`
	Name      string           `json:"name"`
	Timeline  []ir.Observation `json:"timeline"`
	Templates []TraceTemplate  `json:"templates"`
	Stats     map[string]int   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the observation timeline of a run",
		Long: `Show the journaled observations of a run in seq order.

The output includes:
- Timeline: every synthesize, cache_hit, subscribe, invoke and other
  observation, optionally filtered to one binding
- Templates: signature keys with their synthesis and hit counts
- Stats: observation counts per kind

Examples:
  eventbind trace --db ./eventbind.db
  eventbind trace --db ./eventbind.db --run 0190f8c2-...
  eventbind trace --db ./eventbind.db --binding b-2 --format json
  eventbind trace --db ./eventbind.db --kind invoke --kind debounce_fire`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (defaults to the latest run)")
	cmd.Flags().StringVar(&opts.Binding, "binding", "", "filter to one binding ID")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to one event name")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "filter to observation kinds (repeatable)")

	return cmd
}

// resolveRun returns the run named by id, or the latest run when id is empty.
func resolveRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	if id == "" {
		run, err := st.LatestRun(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return store.Run{}, NewExitError(ExitCommandError, "journal has no runs")
		}
		if err != nil {
			return store.Run{}, WrapExitError(ExitCommandError, "failed to read latest run", err)
		}
		return run, nil
	}
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
	}
	if err != nil {
		return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	return run, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	filter, err := traceFilter(opts)
	if err != nil {
		return err
	}
	timeline, err := st.QueryObservations(ctx, query.Select{RunID: run.ID, Filter: filter})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read observations", err)
	}

	records, err := st.ReadTemplates(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read templates", err)
	}
	counts, err := st.CountByKind(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count observations", err)
	}

	result := TraceResult{
		RunID:     run.ID,
		Name:      run.Name,
		Timeline:  timeline,
		Templates: make([]TraceTemplate, 0, len(records)),
		Stats:     make(map[string]int, len(counts)),
	}
	for _, r := range records {
		result.Templates = append(result.Templates, TraceTemplate{
			Signature: r.Signature,
			Path:      r.Path,
			Syntheses: r.Syntheses,
			Hits:      r.Hits,
		})
	}
	for kind, n := range counts {
		result.Stats[string(kind)] = n
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.IsJSON() {
		return formatter.SuccessRun(result.RunID, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// traceFilter builds the observation filter from the trace flags.
func traceFilter(opts *TraceOptions) (query.Predicate, error) {
	var preds []query.Predicate
	if opts.Binding != "" {
		preds = append(preds, query.Equals{Field: query.FieldBindingID, Value: opts.Binding})
	}
	if opts.Event != "" {
		preds = append(preds, query.Equals{Field: query.FieldEvent, Value: opts.Event})
	}
	if len(opts.Kinds) > 0 {
		kinds := make([]ir.ObservationKind, 0, len(opts.Kinds))
		for _, k := range opts.Kinds {
			kind := ir.ObservationKind(k)
			if !slices.Contains(traceKinds, kind) {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown observation kind %q", k))
			}
			kinds = append(kinds, kind)
		}
		preds = append(preds, query.Kinds(kinds...))
	}
	return query.All(preds...), nil
}

var traceKinds = []ir.ObservationKind{
	ir.ObsSynthesize,
	ir.ObsCacheHit,
	ir.ObsSubscribe,
	ir.ObsUnsubscribe,
	ir.ObsInvoke,
	ir.ObsDebounce,
	ir.ObsRootChange,
	ir.ObsBindingError,
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s (%s)\n", result.RunID, result.Name)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no observations)")
	}
	for _, o := range result.Timeline {
		formatObservation(w, o, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Templates ===")
	if len(result.Templates) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, t := range result.Templates {
		fmt.Fprintf(w, "  %s %s: %d synthesized, %d hit(s)\n", t.Path, t.Signature, t.Syntheses, t.Hits)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	for _, kind := range traceKinds {
		if n := result.Stats[string(kind)]; n > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", string(kind)+":", n)
		}
	}
	return nil
}

func formatObservation(w io.Writer, o ir.Observation, verbose bool) {
	fmt.Fprintf(w, "  [%d] %-13s", o.Seq, o.Kind)
	if o.BindingID != "" {
		fmt.Fprintf(w, " %s", o.BindingID)
	}
	if o.Event != "" {
		fmt.Fprintf(w, " %s", o.Event)
	}
	if o.Path != "" {
		fmt.Fprintf(w, " → %s", o.Path)
	}
	if o.Detail != "" {
		fmt.Fprintf(w, " (%s)", o.Detail)
	}
	fmt.Fprintln(w)
	if verbose && o.Signature != "" {
		fmt.Fprintf(w, "       Signature: %s\n", o.Signature)
	}
}
