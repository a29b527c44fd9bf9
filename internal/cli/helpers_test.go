package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const editorBindings = `
package test

bindings: {
	save: {event: "Click", path: "Save", args: ["$1"]}
	search: {
		event:    "TextChanged"
		path:     "Child.Select"
		args:     ["$1", {bind: "Count", type: "int"}]
		debounce: "200ms"
	}
}
`

const clickSaveScenario = `
name: click_save
description: "A click calls Save"
source: |
  bindings: save: {event: "Click", path: "Save", args: ["$1"]}
element:
  name: editor
  root: main
  events:
    Click: [any, string]
roots:
  - name: main
steps:
  - bind: save
  - fire: Click
    args: [null, "hello"]
assertions:
  - type: calls
    calls:
      - {root: main, method: Save, args: ["hello"]}
`

const failingScenario = `
name: wrong_count
description: "Expects a second call that never happens"
source: |
  bindings: save: {event: "Click", path: "Save", args: ["$1"]}
element:
  name: editor
  root: main
  events:
    Click: [any, string]
roots:
  - name: main
steps:
  - bind: save
  - fire: Click
    args: [null, "once"]
assertions:
  - type: call_count
    method: Save
    count: 2
`

// writeFile writes content to dir/name, creating dir if needed.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns its combined output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// executeSplit runs cmd with args and returns stdout and stderr separately.
func executeSplit(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// journalScenario runs clickSaveScenario into a fresh journal and returns
// the database path.
func journalScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scenario := writeFile(t, dir, "click_save.yaml", clickSaveScenario)
	dbPath := filepath.Join(dir, "journal.db")

	_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), scenario, "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}
