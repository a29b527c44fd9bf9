package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compileResponse struct {
	Status string            `json:"status"`
	Data   CompilationResult `json:"data"`
}

func TestCompileValidBindings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "editor.cue", editorBindings)

	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ Compiled 2 binding(s)")
	assert.Contains(t, output, "save: [Click] → Save(1 arg(s))")
	assert.Contains(t, output, "search: [TextChanged] → Child.Select(2 arg(s)) debounce 200ms")
}

func TestCompileValidBindingsJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "editor.cue", editorBindings)

	output, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Declarations, 2)

	save := resp.Data.Declarations[0]
	assert.Equal(t, "save", save.Name)
	assert.Equal(t, "Save", save.Path)
	assert.Equal(t, []string{"Click"}, save.Events)
	assert.Equal(t, []CompiledArg{{Kind: "positional", Token: "$1"}}, save.Args)
	assert.Zero(t, save.DebounceMS)
	assert.NotEmpty(t, save.Hash)

	search := resp.Data.Declarations[1]
	assert.Equal(t, int64(200), search.DebounceMS)
	require.Len(t, search.Args, 2)
	assert.Equal(t, "bound", search.Args[1].Kind)
	assert.Equal(t, "int", search.Args[1].Type)
}

func TestCompileHashIsStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "editor.cue", editorBindings)

	var hashes [2]string
	for i := range hashes {
		output, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
		require.NoError(t, err)
		var resp compileResponse
		require.NoError(t, json.Unmarshal([]byte(output), &resp))
		hashes[i] = resp.Data.Declarations[0].Hash
	}
	assert.Equal(t, hashes[0], hashes[1])
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "editor.cue", editorBindings)
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote compiled bindings to")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.Declarations, 2)
}

func TestCompileDirectoryNotFound(t *testing.T) {
	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, ErrCodeNotFound)
}

func TestCompileNoCUEFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "not cue")

	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, output, ErrCodeNoFiles)
}

func TestCompileNoDeclarations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.cue", "package test\n")

	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "no binding declarations found")
}

func TestCompileMissingPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", `
package test

bindings: {
	save: {event: "Click", path: "Save"}
	broken: {event: "Click"}
}
`)

	output, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "bindings.broken.path")
	assert.Contains(t, resp.Error.Message, "path is required")
}

func TestCompileCollectsAllErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", `
package test

bindings: {
	a: {event: "Click"}
	b: {path: "Save"}
}
`)

	output, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ Compilation failed")
	assert.Contains(t, err.Error(), "2 error(s)")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"bindings.save.path", "E101"},
		{"bindings.save.events", "E102"},
		{"bindings.save.debounce", "E106"},
		{"bindings.save.args[0]", ErrCodeInvalidArgument},
		{"value", ErrCodeInvalidArgument},
		{"cue", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
