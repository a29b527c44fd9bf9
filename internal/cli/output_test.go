package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/compiler"
)

func TestOutputFormatter_SuccessRunJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.SuccessRun("run-1", RunResult{Scenario: "click_save", RunID: "run-1", Pass: true, Calls: 1})
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		RunID  string    `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "click_save", resp.Data.Scenario)
	assert.Equal(t, 1, resp.Data.Calls)
}

func TestOutputFormatter_SuccessOmitsRunID(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(ValidationResult{Valid: true, Bindings: 2}))
	assert.NotContains(t, buf.String(), "run_id")

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Bindings)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := []compiler.ValidationError{{Field: "bindings.save.path", Message: "path is required", Code: compiler.ErrInvalidPath}}
	require.NoError(t, formatter.Error(compiler.ErrInvalidPath, "path is required", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Equal(t, "path is required", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
	assert.Nil(t, resp.Data)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error(ErrCodeNotFound, "bindings directory not found: ./b", "./b"))
			assert.Contains(t, buf.String(), "✗ E005: bindings directory not found: ./b")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: ./b")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{"verbose_enabled", true},
		{"verbose_disabled", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("Running scenario: %s", "click_save.yaml")

			assert.Empty(t, out.String())
			if tt.verbose {
				assert.Equal(t, "Running scenario: click_save.yaml\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_VerboseLogFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	formatter.VerboseLog("Found %d CUE file(s)", 3)
	assert.Equal(t, "Found 3 CUE file(s)\n", buf.String())
}

func TestOutputFormatter_LoggerLevel(t *testing.T) {
	quiet := &bytes.Buffer{}
	(&OutputFormatter{Writer: &bytes.Buffer{}, ErrWriter: quiet}).Logger().Debug("synthesized handler template")
	assert.Empty(t, quiet.String())

	(&OutputFormatter{Writer: &bytes.Buffer{}, ErrWriter: quiet}).Logger().Warn("binding target unavailable")
	assert.Contains(t, quiet.String(), "binding target unavailable")

	loud := &bytes.Buffer{}
	(&OutputFormatter{Writer: &bytes.Buffer{}, ErrWriter: loud, Verbose: true}).Logger().Debug("synthesized handler template", "path", "Save")
	assert.Contains(t, loud.String(), "level=DEBUG")
	assert.Contains(t, loud.String(), "path=Save")
}

func TestNewFormatter(t *testing.T) {
	cmd := &cobra.Command{}
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	formatter := newFormatter(&RootOptions{Format: "json", Verbose: true}, cmd)
	assert.True(t, formatter.IsJSON())
	assert.True(t, formatter.Verbose)
	assert.Same(t, out, formatter.Writer)
	assert.Same(t, errOut, formatter.ErrWriter)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"failure", NewExitError(ExitFailure, "1 scenario(s) failed"), ExitFailure},
		{"command error", WrapExitError(ExitCommandError, "failed to open database", errors.New("disk")), ExitCommandError},
		{"wrapped", errors.Join(errors.New("context"), NewExitError(ExitCommandError, "journal has no runs")), ExitCommandError},
		{"plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitCommandError, "failed to open database", errors.New("permission denied"))
	assert.Equal(t, "failed to open database: permission denied", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "permission denied")
	assert.Equal(t, "run not found: r-1", NewExitError(ExitCommandError, "run not found: r-1").Error())
}
