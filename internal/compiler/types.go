package compiler

import (
	"reflect"
	"sort"

	"github.com/cockroachdb/apd/v3"
)

// typeNames are the declared types usable in {bind, type} and
// {value, type} arguments.
var typeNames = map[string]reflect.Type{
	"string":  reflect.TypeFor[string](),
	"bool":    reflect.TypeFor[bool](),
	"int":     reflect.TypeFor[int](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   reflect.TypeFor[int64](),
	"uint":    reflect.TypeFor[uint](),
	"float32": reflect.TypeFor[float32](),
	"float64": reflect.TypeFor[float64](),
	"decimal": reflect.TypeFor[*apd.Decimal](),
	"any":     reflect.TypeFor[any](),
}

// TypeByName returns the Go type for a declared type name.
func TypeByName(name string) (reflect.Type, bool) {
	t, ok := typeNames[name]
	return t, ok
}

// TypeNames returns the supported declared type names, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(typeNames))
	for n := range typeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
