package compiler

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/eventbind/internal/ir"
	"github.com/roach88/eventbind/internal/literal"
)

// BindingsField is the top-level field holding binding declarations.
const BindingsField = "bindings"

// CompileString compiles CUE source and returns its binding declarations.
// filename is used for error positions only.
func CompileString(filename, src string) ([]*ir.BindingDeclaration, error) {
	v := cuecontext.New().CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileBindings(v)
}

// CompileBindings compiles every declaration under the bindings field of v,
// in source order. A value without a bindings field yields no declarations.
func CompileBindings(v cue.Value) ([]*ir.BindingDeclaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	bindingsVal := v.LookupPath(cue.ParsePath(BindingsField))
	if !bindingsVal.Exists() {
		return nil, nil
	}

	iter, err := bindingsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []*ir.BindingDeclaration
	for iter.Next() {
		decl, err := CompileDeclaration(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// CompileDeclaration parses one binding struct into a BindingDeclaration
// named name.
//
//	save: {
//		event: "Click"        // or events: ["Click", "DoubleClick"]
//		path:  "Doc.Save"
//		args: ["$1", 3]       // optional
//		debounce: "200ms"     // optional; an int means milliseconds
//	}
func CompileDeclaration(name string, v cue.Value) (*ir.BindingDeclaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	field := BindingsField + "." + name

	// Parse path (required)
	pathVal := v.LookupPath(cue.ParsePath("path"))
	if !pathVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".path",
			Message: "path is required",
			Pos:     v.Pos(),
		}
	}
	path, err := pathVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	// Parse events (required, event and/or events)
	events, err := parseEvents(field, v)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, &CompileError{
			Field:   field + ".events",
			Message: "at least one event is required",
			Pos:     v.Pos(),
		}
	}

	// Parse args (optional)
	args, err := parseArgs(field, v)
	if err != nil {
		return nil, err
	}

	opts := []ir.DeclarationOption{ir.WithName(name), ir.WithEvents(events...)}

	// Parse debounce (optional)
	debounceVal := v.LookupPath(cue.ParsePath("debounce"))
	if debounceVal.Exists() {
		d, err := parseDebounce(field, debounceVal)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ir.WithDebounce(d))
	}

	decl, err := ir.NewDeclaration(path, args, opts...)
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return decl, nil
}

// parseEvents collects event names from event (a string) and events (a
// string or list of strings). Comma-separated lists are split.
func parseEvents(field string, v cue.Value) ([]string, error) {
	var events []string

	eventVal := v.LookupPath(cue.ParsePath("event"))
	if eventVal.Exists() {
		s, err := eventVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		events = append(events, s)
	}

	eventsVal := v.LookupPath(cue.ParsePath("events"))
	if eventsVal.Exists() {
		if s, err := eventsVal.String(); err == nil {
			events = append(events, s)
		} else {
			iter, err := eventsVal.List()
			if err != nil {
				return nil, &CompileError{
					Field:   field + ".events",
					Message: "must be a string or a list of strings",
					Pos:     eventsVal.Pos(),
				}
			}
			for iter.Next() {
				s, err := iter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				events = append(events, s)
			}
		}
	}

	return ir.SplitEvents(events...), nil
}

func parseArgs(field string, v cue.Value) ([]ir.ArgumentSpec, error) {
	argsVal := v.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return nil, nil
	}

	iter, err := argsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field + ".args",
			Message: "args must be a list",
			Pos:     argsVal.Pos(),
		}
	}

	var args []ir.ArgumentSpec
	for i := 0; iter.Next(); i++ {
		arg, err := compileArg(fmt.Sprintf("%s.args[%d]", field, i), iter.Value())
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

// compileArg converts one CUE argument value.
func compileArg(field string, v cue.Value) (ir.ArgumentSpec, error) {
	switch v.Kind() {
	case cue.StringKind:
		token, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec, err := literal.Parse(token)
		if err != nil {
			return nil, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos(), Err: err}
		}
		return spec, nil

	case cue.IntKind, cue.FloatKind, cue.BoolKind:
		x, err := goValue(v)
		if err != nil {
			return nil, err
		}
		return ir.NewLiteral(x, fmt.Sprint(v)), nil

	case cue.StructKind:
		return compileStructArg(field, v)

	case cue.NullKind:
		return nil, &CompileError{
			Field:   field,
			Message: "null needs a declared type: use {value: null, type: \"...\"}",
			Pos:     v.Pos(),
		}

	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported argument kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// compileStructArg handles {bind: descriptor, type?: name} and
// {value: x, type: name}.
func compileStructArg(field string, v cue.Value) (ir.ArgumentSpec, error) {
	var declared reflect.Type
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if typeVal.Exists() {
		name, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t, ok := TypeByName(name)
		if !ok {
			return nil, &CompileError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown type %q, must be one of %v", name, TypeNames()),
				Pos:     typeVal.Pos(),
			}
		}
		declared = t
	}

	if bindVal := v.LookupPath(cue.ParsePath("bind")); bindVal.Exists() {
		descriptor, err := bindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.BoundValue{Descriptor: descriptor, Type: declared}, nil
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if !valueVal.Exists() {
		return nil, &CompileError{
			Field:   field,
			Message: "struct argument needs a bind or value field",
			Pos:     v.Pos(),
		}
	}
	if declared == nil {
		return nil, &CompileError{
			Field:   field + ".type",
			Message: "typed literal requires a type",
			Pos:     v.Pos(),
		}
	}
	return typedLiteral(field, valueVal, declared)
}

var decimalType = reflect.TypeFor[*apd.Decimal]()

// typedLiteral converts a CUE value to a literal of type t. Conversions
// stay within a family: numbers to numbers, strings to strings, bools to
// bools. Any value fits "any"; null is the zero value of t.
func typedLiteral(field string, v cue.Value, t reflect.Type) (ir.ArgumentSpec, error) {
	raw := fmt.Sprint(v)
	if v.IsNull() {
		return ir.Literal{Value: nil, Type: t, Raw: raw}, nil
	}

	mismatch := func() error {
		return &CompileError{
			Field:   field + ".value",
			Message: fmt.Sprintf("%s is not a valid %s", raw, t),
			Pos:     v.Pos(),
		}
	}

	if t == decimalType {
		var s string
		switch v.Kind() {
		case cue.StringKind:
			s, _ = v.String()
		case cue.IntKind, cue.FloatKind:
			s = raw
		default:
			return nil, mismatch()
		}
		d, _, err := apd.NewFromString(s)
		if err != nil || d.Form != apd.Finite {
			return nil, mismatch()
		}
		return ir.Literal{Value: d, Type: t, Raw: raw}, nil
	}

	x, err := goValue(v)
	if err != nil {
		return nil, err
	}
	if t.Kind() == reflect.Interface {
		return ir.Literal{Value: x, Type: t, Raw: raw}, nil
	}

	rv := reflect.ValueOf(x)
	if !sameFamily(rv.Kind(), t.Kind()) || !rv.CanConvert(t) || lossy(rv, t) {
		return nil, mismatch()
	}
	return ir.Literal{Value: rv.Convert(t).Interface(), Type: t, Raw: raw}, nil
}

// lossy reports whether converting the number rv to t would truncate or
// overflow.
func lossy(rv reflect.Value, t reflect.Type) bool {
	zero := reflect.New(t).Elem()
	switch {
	case rv.Kind() == reflect.Float64 && (zero.CanInt() || zero.CanUint()):
		f := rv.Float()
		if f != math.Trunc(f) {
			return true
		}
		if zero.CanInt() {
			return f < math.MinInt64 || f > math.MaxInt64 || zero.OverflowInt(int64(f))
		}
		return f < 0 || f > math.MaxUint64 || zero.OverflowUint(uint64(f))
	case rv.Kind() == reflect.Int && zero.CanInt():
		return zero.OverflowInt(rv.Int())
	case rv.Kind() == reflect.Int && zero.CanUint():
		return rv.Int() < 0 || zero.OverflowUint(uint64(rv.Int()))
	case rv.Kind() == reflect.Float64 && zero.CanFloat():
		return zero.OverflowFloat(rv.Float())
	}
	return false
}

func sameFamily(a, b reflect.Kind) bool {
	return family(a) != 0 && family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.String:
		return 1
	case reflect.Bool:
		return 2
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 3
	default:
		return 0
	}
}

// goValue returns the Go value of a concrete scalar: string, int, float64
// or bool.
func goValue(v cue.Value) (any, error) {
	var (
		x   any
		err error
	)
	switch v.Kind() {
	case cue.StringKind:
		x, err = v.String()
	case cue.IntKind:
		var n int64
		n, err = v.Int64()
		x = int(n)
	case cue.FloatKind:
		x, err = v.Float64()
	case cue.BoolKind:
		x, err = v.Bool()
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	if err != nil {
		return nil, formatCUEError(err)
	}
	return x, nil
}

// parseDebounce accepts a duration string ("200ms") or an int number of
// milliseconds.
func parseDebounce(field string, v cue.Value) (time.Duration, error) {
	if v.Kind() == cue.IntKind {
		ms, err := v.Int64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	s, err := v.String()
	if err != nil {
		return 0, &CompileError{
			Field:   field + ".debounce",
			Message: "debounce must be a duration string or milliseconds",
			Pos:     v.Pos(),
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{
			Field:   field + ".debounce",
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return d, nil
}
