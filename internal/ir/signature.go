package ir

import (
	"fmt"
	"reflect"
	"strings"
)

// ResolvedSignature describes one synthesized adapter.
//
// Adapters for different event signatures, root types, paths or argument
// types never share an ID.
type ResolvedSignature struct {
	Event reflect.Type   // Event handler func type
	Root  reflect.Type   // Root object's runtime type
	Path  string         // Target member path
	Args  []reflect.Type // Resolved argument runtime types, in order
}

// SignatureID identifies a signature by type identity. It is comparable
// and is what handler caches are keyed by.
type SignatureID struct {
	Event reflect.Type
	Root  reflect.Type
	Path  string
	Args  reflect.Type // func type whose parameters are the argument types
}

// ID returns the identity of s. Two types that render alike, such as
// function-local types of the same name, get distinct IDs.
func (s ResolvedSignature) ID() SignatureID {
	// reflect interns constructed func types, so equal argument lists
	// yield the same reflect.Type.
	return SignatureID{
		Event: s.Event,
		Root:  s.Root,
		Path:  s.Path,
		Args:  reflect.FuncOf(s.Args, nil, false),
	}
}

// Key returns the content-addressed signature key used to label
// observations and journal records.
//
// Format: hex(SHA256("eventbind/signature/v1" + 0x00 + canonicalJSON)).
// Types are rendered with package-qualified names. Key is stable across
// processes but cannot tell apart types that render alike; use ID for
// identity.
func (s ResolvedSignature) Key() string {
	args := make([]string, len(s.Args))
	for i, t := range s.Args {
		args[i] = TypeName(t)
	}
	obj := map[string]any{
		"event": TypeName(s.Event),
		"root":  TypeName(s.Root),
		"path":  s.Path,
		"args":  args,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(fmt.Sprintf("ResolvedSignature.Key: %v", err))
	}
	return hashWithDomain(DomainSignature, canonical)
}

// String renders a human-readable, package-qualified form of the signature.
func (s ResolvedSignature) String() string {
	args := make([]string, len(s.Args))
	for i, t := range s.Args {
		args[i] = TypeName(t)
	}
	return fmt.Sprintf("%s|%s|%s(%s)", TypeName(s.Event), TypeName(s.Root), s.Path, strings.Join(args, ","))
}

// TypeName renders t with package-qualified names for every named type it
// mentions, e.g. "*github.com/acme/app.ViewModel".
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), TypeName(t.Elem()))
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	case reflect.Chan:
		return t.ChanDir().String() + " " + TypeName(t.Elem())
	case reflect.Func:
		in := make([]string, t.NumIn())
		for i := range in {
			in[i] = TypeName(t.In(i))
		}
		out := make([]string, t.NumOut())
		for i := range out {
			out[i] = TypeName(t.Out(i))
		}
		s := "func(" + strings.Join(in, ",") + ")"
		if len(out) > 0 {
			s += "(" + strings.Join(out, ",") + ")"
		}
		return s
	default:
		// Unnamed structs and interfaces: reflect's rendering is already
		// structural; package names of embedded types are short but the
		// field set disambiguates in practice.
		return t.String()
	}
}

// ParamTypes returns the ordered parameter types of a func type.
func ParamTypes(fn reflect.Type) []reflect.Type {
	types := make([]reflect.Type, fn.NumIn())
	for i := range types {
		types[i] = fn.In(i)
	}
	return types
}
