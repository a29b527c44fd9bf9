package compiler

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventbind/internal/ir"
)

// src lets test sources use ' where CUE needs a back-tick, which a Go raw
// string cannot hold.
func src(s string) string {
	return strings.ReplaceAll(s, "'", "`")
}

func compileOne(t *testing.T, body string) *ir.BindingDeclaration {
	t.Helper()
	decls, err := CompileString("bindings.cue", src(body))
	require.NoError(t, err)
	require.Len(t, decls, 1)
	return decls[0]
}

func TestCompileDeclarationBasic(t *testing.T) {
	decl := compileOne(t, `
		bindings: save: {
			event: "Click"
			path:  "Doc.Save"
			args: ["$1", "'draft'", 3, true, 2.5, "12.50m"]
		}
	`)

	assert.Equal(t, "save", decl.Name())
	assert.Equal(t, "Doc.Save", decl.Path())
	assert.Equal(t, []string{"Click"}, decl.Events())
	assert.Zero(t, decl.Debounce())

	args := decl.Args()
	require.Len(t, args, 6)
	assert.Equal(t, ir.PositionalRef{Index: 1, Raw: "$1"}, args[0])
	assert.Equal(t, "draft", args[1].(ir.Literal).Value)
	assert.Equal(t, 3, args[2].(ir.Literal).Value)
	assert.Equal(t, true, args[3].(ir.Literal).Value)
	assert.Equal(t, 2.5, args[4].(ir.Literal).Value)

	d, ok := args[5].(ir.Literal).Value.(*apd.Decimal)
	require.True(t, ok)
	assert.Equal(t, "12.50", d.String())
}

func TestCompileDeclarationEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"event string", `event: "Click"`, []string{"Click"}},
		{"comma separated", `event: "Click, DoubleClick"`, []string{"Click", "DoubleClick"}},
		{"events list", `events: ["Click", "Submit"]`, []string{"Click", "Submit"}},
		{"events string", `events: "Click,Submit"`, []string{"Click", "Submit"}},
		{"both", `event: "Click"
			events: ["Submit"]`, []string{"Click", "Submit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := compileOne(t, `bindings: b: {
				path: "Doc.Save"
				`+tt.body+`
			}`)
			assert.Equal(t, tt.want, decl.Events())
		})
	}
}

func TestCompileDeclarationDebounce(t *testing.T) {
	decl := compileOne(t, `bindings: a: { event: "Changed", path: "Search.Run", debounce: "200ms" }`)
	assert.Equal(t, 200*time.Millisecond, decl.Debounce())

	decl = compileOne(t, `bindings: a: { event: "Changed", path: "Search.Run", debounce: 150 }`)
	assert.Equal(t, 150*time.Millisecond, decl.Debounce())

	_, err := CompileString("bindings.cue", `bindings: a: { event: "Changed", path: "Search.Run", debounce: "soon" }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bindings.a.debounce")

	_, err = CompileString("bindings.cue", `bindings: a: { event: "Changed", path: "Search.Run", debounce: "-5ms" }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative")
}

func TestCompileBoundArguments(t *testing.T) {
	decl := compileOne(t, `
		bindings: search: {
			event: "Submit"
			path:  "Search.Run"
			args: [{bind: "Query.Text", type: "string"}, {bind: "Page"}]
		}
	`)

	args := decl.Args()
	require.Len(t, args, 2)
	assert.Equal(t, ir.BoundValue{Descriptor: "Query.Text", Type: reflect.TypeFor[string]()}, args[0])
	assert.Equal(t, ir.BoundValue{Descriptor: "Page"}, args[1])
}

func TestCompileTypedLiterals(t *testing.T) {
	decl := compileOne(t, `
		bindings: price: {
			event: "Click"
			path:  "Cart.Add"
			args: [
				{value: 3, type: "int64"},
				{value: "9.99", type: "decimal"},
				{value: 4, type: "decimal"},
				{value: null, type: "string"},
				{value: 7, type: "any"},
				{value: 2, type: "float64"},
			]
		}
	`)

	args := decl.Args()
	require.Len(t, args, 6)

	assert.Equal(t, int64(3), args[0].(ir.Literal).Value)
	assert.Equal(t, reflect.TypeFor[int64](), args[0].(ir.Literal).Type)

	assert.Equal(t, "9.99", args[1].(ir.Literal).Value.(*apd.Decimal).String())
	assert.Equal(t, "4", args[2].(ir.Literal).Value.(*apd.Decimal).String())

	assert.Nil(t, args[3].(ir.Literal).Value)
	assert.Equal(t, reflect.TypeFor[string](), args[3].(ir.Literal).Type)

	assert.Equal(t, 7, args[4].(ir.Literal).Value)
	assert.Equal(t, reflect.TypeFor[any](), args[4].(ir.Literal).Type)

	assert.Equal(t, float64(2), args[5].(ir.Literal).Value)
}

func TestCompileArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		message string
	}{
		{"bare word", `"bare"`, "back-ticks"},
		{"null", `null`, "declared type"},
		{"unknown type", `{value: 1, type: "complex"}`, "unknown type"},
		{"truncating", `{value: 2.5, type: "int"}`, "not a valid int"},
		{"cross family", `{value: "x", type: "int"}`, "not a valid int"},
		{"typed literal without type", `{value: 1}`, "requires a type"},
		{"empty struct", `{}`, "bind or value"},
		{"bad decimal", `{value: "abc", type: "decimal"}`, "not a valid"},
		{"list", `[1]`, "unsupported argument kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString("bindings.cue", `bindings: b: {
				event: "Click"
				path: "Doc.Save"
				args: [`+tt.arg+`]
			}`)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCompileOverflowInt32(t *testing.T) {
	// 300 fits an int32; 1<<40 does not
	decl := compileOne(t, `bindings: b: { event: "Click", path: "Doc.Save", args: [{value: 300, type: "int32"}] }`)
	assert.Equal(t, int32(300), decl.Arg(0).(ir.Literal).Value)

	_, err := CompileString("bindings.cue", `bindings: b: { event: "Click", path: "Doc.Save", args: [{value: 1099511627776, type: "int32"}] }`)
	require.Error(t, err)
}

func TestCompileParseErrorUnwraps(t *testing.T) {
	_, err := CompileString("bindings.cue", `bindings: b: { event: "Click", path: "Doc.Save", args: ["nope"] }`)
	require.Error(t, err)

	assert.True(t, ir.IsParseError(err))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bindings.b.args[0]", ce.Field)
}

func TestCompileDeclarationMissingPath(t *testing.T) {
	_, err := CompileString("bindings.cue", `
bindings: b: {
	event: "Click"
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "bindings.cue:")
}

func TestCompileDeclarationMissingEvents(t *testing.T) {
	_, err := CompileString("bindings.cue", `bindings: b: { path: "Doc.Save" }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one event")

	_, err = CompileString("bindings.cue", `bindings: b: { path: "Doc.Save", events: 3 }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list of strings")
}

func TestCompileBindingsOrderAndEmpty(t *testing.T) {
	decls, err := CompileString("bindings.cue", `
		bindings: {
			zeta:  { event: "Click", path: "A.Z" }
			alpha: { event: "Click", path: "A.A" }
		}
	`)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "zeta", decls[0].Name())
	assert.Equal(t, "alpha", decls[1].Name())

	decls, err = CompileString("other.cue", `other: 1`)
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestCompileCUESyntaxError(t *testing.T) {
	_, err := CompileString("broken.cue", `bindings: { b: `)
	require.Error(t, err)
}
