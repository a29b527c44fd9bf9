package ir

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ArgKind identifies the resolution strategy of an ArgumentSpec.
type ArgKind int

const (
	// KindLiteral is a value fixed when the binding is declared.
	KindLiteral ArgKind = iota + 1
	// KindPositional pulls the value from the event's own call-time parameters.
	KindPositional
	// KindBound pulls the value from an external ValueSource once per adapter instance.
	KindBound
)

func (k ArgKind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindPositional:
		return "positional"
	case KindBound:
		return "bound"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// ArgumentSpec is a sealed variant: Literal, PositionalRef, or BoundValue.
type ArgumentSpec interface {
	Kind() ArgKind
	String() string
	argumentSpec() // Sealed
}

// Literal is a typed constant argument.
// Type is the static type used for method matching; it equals
// reflect.TypeOf(Value) unless Value is nil.
type Literal struct {
	Value any
	Type  reflect.Type
	Raw   string // Source token, empty for already-typed values
}

// NewLiteral creates a Literal typed after its runtime value.
func NewLiteral(v any, raw string) Literal {
	return Literal{Value: v, Type: reflect.TypeOf(v), Raw: raw}
}

func (Literal) Kind() ArgKind { return KindLiteral }
func (Literal) argumentSpec() {}

func (l Literal) String() string {
	if l.Raw != "" {
		return l.Raw
	}
	return fmt.Sprintf("%v", l.Value)
}

// PositionalRef refers to event parameter Index ("$0", "$1", ...).
type PositionalRef struct {
	Index int
	Raw   string
}

func (PositionalRef) Kind() ArgKind { return KindPositional }
func (PositionalRef) argumentSpec() {}

func (p PositionalRef) String() string {
	if p.Raw != "" {
		return p.Raw
	}
	return fmt.Sprintf("$%d", p.Index)
}

// BoundValue is resolved through an external ValueSource.
//
// Descriptor is opaque to the engine and interpreted by the ValueSource.
// Type, when set, is the declared static type of the resolved value; when
// nil the runtime type of the resolved value is used.
type BoundValue struct {
	Descriptor any
	Type       reflect.Type
}

func (BoundValue) Kind() ArgKind { return KindBound }
func (BoundValue) argumentSpec() {}

func (b BoundValue) String() string {
	return fmt.Sprintf("{bind %v}", b.Descriptor)
}

// BindingDeclaration is the static description of which member to call,
// with which arguments, for which events.
//
// INVARIANT: never mutated after NewDeclaration returns. Accessors return copies.
type BindingDeclaration struct {
	name     string
	path     string
	args     []ArgumentSpec
	debounce time.Duration
	events   []string
}

// DeclarationOption configures a BindingDeclaration at construction.
type DeclarationOption func(*BindingDeclaration)

// WithName labels the declaration (used in logs and the journal).
func WithName(name string) DeclarationOption {
	return func(d *BindingDeclaration) {
		d.name = name
	}
}

// WithDebounce enables debounce with the given interval.
// Zero disables debounce.
func WithDebounce(interval time.Duration) DeclarationOption {
	return func(d *BindingDeclaration) {
		d.debounce = interval
	}
}

// WithEvents sets the event paths. Each entry may itself be a
// comma-separated list ("Click,DoubleClick").
func WithEvents(events ...string) DeclarationOption {
	return func(d *BindingDeclaration) {
		d.events = append(d.events, SplitEvents(events...)...)
	}
}

// NewDeclaration builds an immutable BindingDeclaration.
//
// The args slice is copied to prevent external mutation.
func NewDeclaration(path string, args []ArgumentSpec, opts ...DeclarationOption) (*BindingDeclaration, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &BindError{Code: ErrCodeMissingMember, Message: "method path is required"}
	}

	d := &BindingDeclaration{
		path: path,
		args: append([]ArgumentSpec(nil), args...),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.debounce < 0 {
		return nil, fmt.Errorf("debounce interval must not be negative: %s", d.debounce)
	}
	for i, a := range d.args {
		if a == nil {
			return nil, &BindError{Code: ErrCodeParse, Path: path, Message: fmt.Sprintf("argument %d is nil", i)}
		}
	}
	return d, nil
}

// Name returns the declaration label, or the path when unnamed.
func (d *BindingDeclaration) Name() string {
	if d.name == "" {
		return d.path
	}
	return d.name
}

// Path returns the dotted target member path.
func (d *BindingDeclaration) Path() string { return d.path }

// Args returns a copy of the argument specs in declaration order.
func (d *BindingDeclaration) Args() []ArgumentSpec {
	return append([]ArgumentSpec(nil), d.args...)
}

// NumArgs returns the number of argument specs.
func (d *BindingDeclaration) NumArgs() int { return len(d.args) }

// Arg returns argument spec i.
func (d *BindingDeclaration) Arg(i int) ArgumentSpec { return d.args[i] }

// Debounce returns the debounce interval (zero when disabled).
func (d *BindingDeclaration) Debounce() time.Duration { return d.debounce }

// Events returns a copy of the event names.
func (d *BindingDeclaration) Events() []string {
	return append([]string(nil), d.events...)
}

func (d *BindingDeclaration) String() string {
	parts := make([]string, 0, len(d.args)+1)
	parts = append(parts, d.path)
	for _, a := range d.args {
		parts = append(parts, a.String())
	}
	s := strings.Join(parts, ", ")
	if d.debounce > 0 {
		s += fmt.Sprintf(", Debounce = %d", d.debounce.Milliseconds())
	}
	return s
}

// SplitEvents flattens comma-separated event lists, trimming blanks.
func SplitEvents(events ...string) []string {
	var out []string
	for _, e := range events {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LifecycleState is the subscription status of one binding instance.
type LifecycleState int

const (
	// StateUnbound means the adapter is not subscribed to the event source.
	StateUnbound LifecycleState = iota
	// StateBound means the adapter is subscribed.
	StateBound
)

func (s LifecycleState) String() string {
	if s == StateBound {
		return "bound"
	}
	return "unbound"
}
