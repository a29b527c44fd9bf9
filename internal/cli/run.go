package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbind/internal/harness"
	"github.com/roach88/eventbind/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Scenario     string         `json:"scenario"`
	RunID        string         `json:"run_id"`
	Pass         bool           `json:"pass"`
	Calls        int            `json:"calls"`
	Observations int            `json:"observations"`
	Syntheses    int64          `json:"syntheses"`
	CacheHits    int64          `json:"cache_hits"`
	Subscribers  map[string]int `json:"subscribers"`
	Errors       []string       `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and journal its observations",
		Long: `Run a single scenario and record every observation in a SQLite
journal. The database is created if it does not exist; each invocation
adds a new run. Inspect the run afterwards with trace and replay.

Example:
  eventbind run --db ./eventbind.db ./scenarios/debounced_search.yaml
  eventbind run --db /tmp/j.db ./scenarios/click_save.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	formatter.VerboseLog("Loaded scenario %s: %d step(s), %d assertion(s)", scenario.Name, len(scenario.Steps), len(scenario.Assertions))

	logger.Info("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	logger.Debug("running scenario", "name", scenario.Name, "steps", len(scenario.Steps))
	result, err := harness.Run(scenario, harness.WithStore(st), harness.WithLogger(logger))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	out := RunResult{
		Scenario:     scenario.Name,
		RunID:        result.RunID,
		Pass:         result.Pass,
		Calls:        len(result.Calls),
		Observations: len(result.Observations),
		Syntheses:    result.Stats.Syntheses,
		CacheHits:    result.Stats.Hits,
		Subscribers:  result.Subscribers,
		Errors:       result.Errors,
	}

	formatter.VerboseLog("Journaled run %s", out.RunID)

	if formatter.IsJSON() {
		if err := formatter.SuccessRun(out.RunID, out); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		mark := "✓"
		if !out.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, out.Scenario)
		fmt.Fprintf(w, "  Run:          %s\n", out.RunID)
		fmt.Fprintf(w, "  Calls:        %d\n", out.Calls)
		fmt.Fprintf(w, "  Observations: %d\n", out.Observations)
		fmt.Fprintf(w, "  Templates:    %d synthesized, %d cache hit(s)\n", out.Syntheses, out.CacheHits)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}
