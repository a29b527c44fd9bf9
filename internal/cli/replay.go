package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/eventbind/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - defaults to the latest run
}

// ReplayBinding is the reconstructed state of one binding.
type ReplayBinding struct {
	BindingID   string `json:"binding_id"`
	Event       string `json:"event"`
	Path        string `json:"path"`
	State       string `json:"state"`
	Syntheses   int    `json:"syntheses"`
	CacheHits   int    `json:"cache_hits"`
	Invocations int    `json:"invocations"`
	Debounced   int    `json:"debounced"`
	RootChanges int    `json:"root_changes"`
	LastError   string `json:"last_error,omitempty"`
}

// ReplayResult holds the replay result for one run.
type ReplayResult struct {
	RunID         string          `json:"run_id"`
	Name          string          `json:"name"`
	Bindings      []ReplayBinding `json:"bindings"`
	Deterministic bool            `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild binding state from the journal",
		Long: `Fold the journaled observations of a run into per-binding state.

The observations are folded twice and the results compared to verify
that the journal replays deterministically.

Exit codes:
  0 - Replay is deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  eventbind replay --db ./eventbind.db
  eventbind replay --db ./eventbind.db --run 0190f8c2-...
  eventbind replay --db ./eventbind.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to replay (defaults to the latest run)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	first, err := st.ReplayBindings(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay run", err)
	}
	second, err := st.ReplayBindings(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay run", err)
	}

	result := ReplayResult{
		RunID:         run.ID,
		Name:          run.Name,
		Bindings:      make([]ReplayBinding, 0, len(first)),
		Deterministic: cmp.Equal(first, second),
	}
	for _, b := range first {
		result.Bindings = append(result.Bindings, ReplayBinding{
			BindingID:   b.BindingID,
			Event:       b.Event,
			Path:        b.Path,
			State:       b.State.String(),
			Syntheses:   b.Syntheses,
			CacheHits:   b.CacheHits,
			Invocations: b.Invocations,
			Debounced:   b.Debounced,
			RootChanges: b.RootChanges,
			LastError:   b.LastError,
		})
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.IsJSON() {
		if err := outputReplayJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd.OutOrStdout(), result, opts.Verbose)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of run %s is not deterministic", run.ID))
	}
	return nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: "replay produced different binding states",
		}
	}

	return formatter.Respond(response)
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay of Run: %s (%s)\n", result.RunID, result.Name)
	fmt.Fprintln(w)

	if len(result.Bindings) == 0 {
		fmt.Fprintln(w, "  (no bindings)")
	}
	for _, b := range result.Bindings {
		fmt.Fprintf(w, "  %s %s → %s: %s, %d invocation(s)\n", b.BindingID, b.Event, b.Path, b.State, b.Invocations)
		if verbose {
			fmt.Fprintf(w, "       Syntheses: %d, Cache hits: %d, Debounced: %d, Root changes: %d\n",
				b.Syntheses, b.CacheHits, b.Debounced, b.RootChanges)
		}
		if b.LastError != "" {
			fmt.Fprintf(w, "       Last error: %s\n", b.LastError)
		}
	}
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay is deterministic")
	} else {
		fmt.Fprintln(w, "✗ Replay is NOT deterministic")
	}
}
