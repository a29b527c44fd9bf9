package resolve

import (
	"reflect"
)

// MemberGetter is implemented by dynamic objects that expose members by name
// instead of through Go fields and methods.
//
// GetMember returns (nil, false) when the object has no such member; the
// reflective lookups are then tried.
type MemberGetter interface {
	GetMember(name string) (any, bool)
}

var memberGetterType = reflect.TypeFor[MemberGetter]()

// StepKind records which lookup satisfied a path segment.
type StepKind int

const (
	// StepGetter read the member through MemberGetter.
	StepGetter StepKind = iota + 1
	// StepProperty called a zero-argument, single-result method.
	StepProperty
	// StepField read an exported struct field.
	StepField
	// StepMapKey indexed a string-keyed map.
	StepMapKey
)

func (k StepKind) String() string {
	switch k {
	case StepGetter:
		return "getter"
	case StepProperty:
		return "property"
	case StepField:
		return "field"
	case StepMapKey:
		return "key"
	default:
		return "unknown"
	}
}

// Step is one read-through operation of a resolved path.
type Step struct {
	Name string
	Kind StepKind
}

// readMember reads name from cur using the lookup order of the package.
// A member that exists but holds nil is reported with ok true and a value
// for which isNil is true.
func readMember(cur reflect.Value, name string) (reflect.Value, StepKind, bool) {
	cur, ok := unwrapInterface(cur)
	if !ok {
		return reflect.Value{}, 0, false
	}

	if v, ok := readGetter(cur, name); ok {
		return v, StepGetter, true
	}
	if v, ok := readProperty(cur, name); ok {
		return v, StepProperty, true
	}
	if v, ok := readField(cur, name); ok {
		return v, StepField, true
	}
	if v, ok := readMapKey(cur, name); ok {
		return v, StepMapKey, true
	}
	return reflect.Value{}, 0, false
}

// replay performs a single recorded step, preferring the lookup that
// succeeded at resolution time and falling back to the full order when the
// live value has a different shape.
func (s Step) replay(cur reflect.Value) (reflect.Value, bool) {
	cur, ok := unwrapInterface(cur)
	if !ok {
		return reflect.Value{}, false
	}

	var v reflect.Value
	switch s.Kind {
	case StepGetter:
		v, ok = readGetter(cur, s.Name)
	case StepProperty:
		v, ok = readProperty(cur, s.Name)
	case StepField:
		v, ok = readField(cur, s.Name)
	case StepMapKey:
		v, ok = readMapKey(cur, s.Name)
	}
	if ok {
		return v, true
	}
	v, _, ok = readMember(cur, s.Name)
	return v, ok
}

func readGetter(cur reflect.Value, name string) (reflect.Value, bool) {
	recv := cur
	if !recv.Type().Implements(memberGetterType) {
		if !recv.CanAddr() || !recv.Addr().Type().Implements(memberGetterType) {
			return reflect.Value{}, false
		}
		recv = recv.Addr()
	}
	if isNil(recv) || !recv.CanInterface() {
		return reflect.Value{}, false
	}
	got, ok := recv.Interface().(MemberGetter).GetMember(name)
	if !ok {
		return reflect.Value{}, false
	}
	return nilSafeValueOf(got), true
}

func readProperty(cur reflect.Value, name string) (reflect.Value, bool) {
	m, _, ok := methodByName(cur, name)
	if !ok {
		return reflect.Value{}, false
	}
	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() != 1 {
		return reflect.Value{}, false
	}
	if cur.Kind() == reflect.Pointer && cur.IsNil() {
		return reflect.Value{}, false
	}
	return m.Call(nil)[0], true
}

func readField(cur reflect.Value, name string) (reflect.Value, bool) {
	for cur.Kind() == reflect.Pointer {
		if cur.IsNil() {
			return reflect.Value{}, false
		}
		cur = cur.Elem()
	}
	if cur.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	sf, ok := cur.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return reflect.Value{}, false
	}
	v, err := cur.FieldByIndexErr(sf.Index)
	if err != nil {
		return reflect.Value{}, false
	}
	return v, true
}

func readMapKey(cur reflect.Value, name string) (reflect.Value, bool) {
	for cur.Kind() == reflect.Pointer {
		if cur.IsNil() {
			return reflect.Value{}, false
		}
		cur = cur.Elem()
	}
	if cur.Kind() != reflect.Map || cur.Type().Key().Kind() != reflect.String || cur.IsNil() {
		return reflect.Value{}, false
	}
	v := cur.MapIndex(reflect.ValueOf(name).Convert(cur.Type().Key()))
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	return v, true
}

// methodByName looks name up on cur, then on its address when cur is
// addressable so pointer-receiver methods are found.
func methodByName(cur reflect.Value, name string) (reflect.Value, bool, bool) {
	if m := cur.MethodByName(name); m.IsValid() {
		return m, false, true
	}
	if cur.Kind() != reflect.Pointer && cur.Kind() != reflect.Interface && cur.CanAddr() {
		if m := cur.Addr().MethodByName(name); m.IsValid() {
			return m, true, true
		}
	}
	return reflect.Value{}, false, false
}

func unwrapInterface(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// isNil reports whether v holds nothing a member could be read from.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func nilSafeValueOf(x any) reflect.Value {
	if x == nil {
		return reflect.Value{}
	}
	return reflect.ValueOf(x)
}
