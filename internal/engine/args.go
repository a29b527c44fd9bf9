package engine

import (
	"fmt"
	"reflect"

	"github.com/roach88/eventbind/internal/ir"
)

// argPlan says where one argument's value comes from at call time.
type argPlan struct {
	kind  ir.ArgKind
	index int // Event parameter index for KindPositional
}

// boundArgs is the argument side of one adapter instance: the plan, the
// static types used for method matching, and the snapshot of literal and
// bound values. Positional slots in values are unused.
type boundArgs struct {
	plan   []argPlan
	types  []reflect.Type
	values []reflect.Value
}

// resolveArgs resolves decl's arguments for an adapter of the given event
// type bound to root. Bound values are pulled from vs here, once, and kept
// in the snapshot for the lifetime of the instance.
//
// Errors:
//   - INDEX_OUT_OF_RANGE: a positional reference beyond the event's parameters
//   - BOUND_VALUE: vs is nil, fails, or returns a value of the wrong type
//   - PARSE_ERROR: a literal value not assignable to its declared type
func resolveArgs(decl *ir.BindingDeclaration, event reflect.Type, root any, vs ValueSource) (boundArgs, error) {
	n := decl.NumArgs()
	ba := boundArgs{
		plan:   make([]argPlan, n),
		types:  make([]reflect.Type, n),
		values: make([]reflect.Value, n),
	}

	for i := 0; i < n; i++ {
		switch a := decl.Arg(i).(type) {
		case ir.Literal:
			v, err := literalValue(a)
			if err != nil {
				return boundArgs{}, err
			}
			ba.plan[i] = argPlan{kind: ir.KindLiteral}
			ba.types[i] = a.Type
			ba.values[i] = v

		case ir.PositionalRef:
			if a.Index < 0 || a.Index >= event.NumIn() {
				return boundArgs{}, ir.NewIndexOutOfRangeError(a, event.NumIn())
			}
			ba.plan[i] = argPlan{kind: ir.KindPositional, index: a.Index}
			ba.types[i] = event.In(a.Index)

		case ir.BoundValue:
			v, t, err := boundValue(decl.Path(), a, root, vs, i)
			if err != nil {
				return boundArgs{}, err
			}
			ba.plan[i] = argPlan{kind: ir.KindBound}
			ba.types[i] = t
			ba.values[i] = v

		default:
			return boundArgs{}, fmt.Errorf("unsupported argument spec %T", a)
		}
	}
	return ba, nil
}

// literalValue builds a value of the literal's declared type. A nil Type
// (nil literal without a declared type) yields an invalid value and a nil
// type, which never matches a method parameter.
func literalValue(l ir.Literal) (reflect.Value, error) {
	if l.Type == nil {
		return reflect.Value{}, nil
	}
	return typedValue(l.Value, l.Type, func() error {
		return &ir.BindError{
			Code:    ir.ErrCodeParse,
			Message: fmt.Sprintf("literal %s is not assignable to %s", l, l.Type),
			Token:   l.String(),
		}
	})
}

func boundValue(path string, b ir.BoundValue, root any, vs ValueSource, slot int) (reflect.Value, reflect.Type, error) {
	if vs == nil {
		return reflect.Value{}, nil, ir.NewBoundValueError(path, slot, b.Descriptor, fmt.Errorf("no value source configured"))
	}
	got, err := vs.Resolve(b.Descriptor, root, slot)
	if err != nil {
		return reflect.Value{}, nil, ir.NewBoundValueError(path, slot, b.Descriptor, err)
	}

	t := b.Type
	if t == nil {
		if got == nil {
			return reflect.Value{}, nil, nil
		}
		t = reflect.TypeOf(got)
	}
	v, err := typedValue(got, t, func() error {
		return ir.NewBoundValueError(path, slot, b.Descriptor,
			fmt.Errorf("value of type %T is not assignable to %s", got, t))
	})
	return v, t, err
}

// typedValue returns x as a reflect.Value of exactly type t. nil becomes
// the zero value of t.
func typedValue(x any, t reflect.Type, mismatch func() error) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	if x == nil {
		return v, nil
	}
	rv := reflect.ValueOf(x)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, mismatch()
	}
	v.Set(rv)
	return v, nil
}

// args assembles the call arguments for one invocation.
func (ba boundArgs) args(in []reflect.Value) []reflect.Value {
	out := make([]reflect.Value, len(ba.plan))
	for i, p := range ba.plan {
		if p.kind == ir.KindPositional {
			out[i] = in[p.index]
			continue
		}
		out[i] = ba.values[i]
	}
	return out
}
