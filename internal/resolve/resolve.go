package resolve

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/eventbind/internal/ir"
)

// InvokeMethod is the method name under which a func-valued receiver
// exposes its own call.
const InvokeMethod = "Invoke"

// Target is a resolved member path.
//
// Steps reproduce the traversal from the root to the receiver; Method is
// the final segment. The receiver type seen at resolution time is kept so
// that Call can use the method index directly while the live receiver has
// the same type, and only looks the method up again by name when it does
// not.
//
// Thread-safety: Target is immutable and safe for concurrent use.
type Target struct {
	Path     string
	Steps    []Step
	Method   string
	ArgTypes []reflect.Type

	recvType    reflect.Type // Receiver type at resolution time (after unwrapping interfaces)
	methodIndex int          // Index in recvType's (or its pointer's) method set; -1 for Invoke
	viaAddr     bool         // Method has a pointer receiver and was reached through Addr()
}

// Resolve walks path against root and finds a method whose parameter types
// are exactly argTypes.
//
// Errors:
//   - MISSING_MEMBER: a non-final segment could not be read, or read nil
//   - MISSING_METHOD: no method of the final segment matches argTypes
//
// Both carry the attempted path and argument types, and a suggestion when a
// close name exists.
func Resolve(root any, path string, argTypes []reflect.Type) (*Target, error) {
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return nil, &ir.BindError{
				Code:     ir.ErrCodeMissingMember,
				Message:  fmt.Sprintf("malformed path %q", path),
				Path:     path,
				ArgTypes: argTypes,
			}
		}
	}

	t := &Target{
		Path:     path,
		Method:   segments[len(segments)-1],
		ArgTypes: append([]reflect.Type(nil), argTypes...),
	}

	cur := reflect.ValueOf(root)
	for _, name := range segments[:len(segments)-1] {
		if isNil(cur) {
			return nil, ir.NewMissingMemberError(path, name, nil, argTypes)
		}
		next, kind, ok := readMember(cur, name)
		if !ok || isNil(next) {
			err := ir.NewMissingMemberError(path, name, cur.Type(), argTypes)
			if !ok {
				err.Suggestion = Suggest(name, memberNames(cur))
			}
			return nil, err
		}
		t.Steps = append(t.Steps, Step{Name: name, Kind: kind})
		cur = next
	}

	recv, ok := unwrapInterface(cur)
	if !ok || isNil(recv) {
		return nil, ir.NewMissingMemberError(path, t.Method, nil, argTypes)
	}
	if err := t.bind(recv); err != nil {
		return nil, err
	}
	return t, nil
}

// bind finds the terminal method on recv and records how to reach it.
func (t *Target) bind(recv reflect.Value) error {
	t.recvType = recv.Type()

	if recv.Kind() == reflect.Func && t.Method == InvokeMethod && exactMatch(recv.Type(), t.ArgTypes) {
		t.methodIndex = -1
		return nil
	}

	m, viaAddr, ok := methodByName(recv, t.Method)
	if !ok || !exactMatch(m.Type(), t.ArgTypes) {
		return t.missingMethod(recv, m, ok)
	}

	mt := recv.Type()
	if viaAddr {
		mt = reflect.PointerTo(mt)
	}
	sm, _ := mt.MethodByName(t.Method)
	t.methodIndex = sm.Index
	t.viaAddr = viaAddr
	return nil
}

func (t *Target) missingMethod(recv, found reflect.Value, exists bool) error {
	err := ir.NewMissingMethodError(t.Path, t.ArgTypes)
	if exists {
		err.Suggestion = "found " + ir.FormatCall(t.Method, ir.ParamTypes(found.Type()))
		if found.Type().IsVariadic() {
			err.Suggestion += " (variadic methods are not supported)"
		}
		return err
	}
	err.Suggestion = Suggest(t.Method, methodNames(recv))
	return err
}

// exactMatch reports whether fn takes exactly the given parameter types.
// Variadic functions never match.
func exactMatch(fn reflect.Type, argTypes []reflect.Type) bool {
	if fn.IsVariadic() || fn.NumIn() != len(argTypes) {
		return false
	}
	for i, at := range argTypes {
		if at == nil || fn.In(i) != at {
			return false
		}
	}
	return true
}

// Walk replays the recorded steps against root and returns the receiver.
func (t *Target) Walk(root any) (reflect.Value, error) {
	cur := reflect.ValueOf(root)
	for _, step := range t.Steps {
		if isNil(cur) {
			return reflect.Value{}, ir.NewMissingMemberError(t.Path, step.Name, nil, t.ArgTypes)
		}
		next, ok := step.replay(cur)
		if !ok || isNil(next) {
			return reflect.Value{}, ir.NewMissingMemberError(t.Path, step.Name, cur.Type(), t.ArgTypes)
		}
		cur = next
	}
	recv, ok := unwrapInterface(cur)
	if !ok {
		return reflect.Value{}, ir.NewMissingMemberError(t.Path, t.Method, nil, t.ArgTypes)
	}
	return recv, nil
}

// method returns the callable method value on recv.
func (t *Target) method(recv reflect.Value) (reflect.Value, error) {
	if recv.Type() == t.recvType {
		switch {
		case t.methodIndex < 0:
			return recv, nil
		case !t.viaAddr:
			return recv.Method(t.methodIndex), nil
		case recv.CanAddr():
			return recv.Addr().Method(t.methodIndex), nil
		}
	}

	// The live receiver differs from the resolved one (an interface-typed
	// member now holds another type); look the method up again.
	if recv.Kind() == reflect.Func && t.Method == InvokeMethod && exactMatch(recv.Type(), t.ArgTypes) {
		return recv, nil
	}
	m, _, ok := methodByName(recv, t.Method)
	if !ok || !exactMatch(m.Type(), t.ArgTypes) {
		return reflect.Value{}, ir.NewMissingMethodError(t.Path, t.ArgTypes)
	}
	return m, nil
}

// Call walks root and invokes the target with args. Results of the target
// are returned unchanged. Panics raised by the target propagate.
func (t *Target) Call(root any, args []reflect.Value) ([]reflect.Value, error) {
	recv, err := t.Walk(root)
	if err != nil {
		return nil, err
	}
	m, err := t.method(recv)
	if err != nil {
		return nil, err
	}
	return m.Call(args), nil
}

// ReceiverType returns the receiver type seen at resolution time.
func (t *Target) ReceiverType() reflect.Type { return t.recvType }

func (t *Target) String() string {
	return ir.FormatCall(t.Path, t.ArgTypes)
}
