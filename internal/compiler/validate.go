package compiler

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/eventbind/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidPath       = "E101" // path is not a dotted identifier chain
	ErrNoEvents          = "E102" // declaration names no event
	ErrDuplicateEvent    = "E103" // same event listed twice
	ErrInvalidEventName  = "E104" // event name is not an identifier
	ErrDuplicateName     = "E105" // duplicate declaration name
	ErrDebounceSubMillis = "E106" // debounce not a whole number of milliseconds
	ErrPositionalIndex   = "E107" // positional reference beyond MaxEventParams
)

// MaxEventParams bounds positional references checked by Validate. Event
// signatures are only known at bind time; this catches obvious typos.
const MaxEventParams = 8

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks declarations against the structural rules that do not
// need a root or an element. Returns all errors found (does not fail-fast).
func Validate(decls []*ir.BindingDeclaration) []ValidationError {
	var errs []ValidationError
	names := make(map[string]bool)

	for _, decl := range decls {
		field := BindingsField + "." + decl.Name()

		// E105: duplicate declaration name
		if names[decl.Name()] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate binding name: %q", decl.Name()),
				Code:    ErrDuplicateName,
			})
		}
		names[decl.Name()] = true

		errs = append(errs, validateDeclaration(field, decl)...)
	}
	return errs
}

func validateDeclaration(field string, decl *ir.BindingDeclaration) []ValidationError {
	var errs []ValidationError

	// E101: path must be Ident(.Ident)*
	if !isValidPath(decl.Path()) {
		errs = append(errs, ValidationError{
			Field:   field + ".path",
			Message: fmt.Sprintf("invalid path %q, expected format \"Member.Method\"", decl.Path()),
			Code:    ErrInvalidPath,
		})
	}

	// E102: at least one event
	events := decl.Events()
	if len(events) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".events",
			Message: "at least one event is required",
			Code:    ErrNoEvents,
		})
	}

	seen := make(map[string]bool)
	for i, ev := range events {
		// E104: event names are identifiers
		if !identPattern.MatchString(ev) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.events[%d]", field, i),
				Message: fmt.Sprintf("invalid event name %q", ev),
				Code:    ErrInvalidEventName,
			})
		}
		// E103: duplicate event
		if seen[ev] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.events[%d]", field, i),
				Message: fmt.Sprintf("event %q listed more than once", ev),
				Code:    ErrDuplicateEvent,
			})
		}
		seen[ev] = true
	}

	// E106: debounce granularity is one millisecond
	if d := decl.Debounce(); d%time.Millisecond != 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".debounce",
			Message: fmt.Sprintf("debounce %s is not a whole number of milliseconds", d),
			Code:    ErrDebounceSubMillis,
		})
	}

	// E107: positional references
	for i, arg := range decl.Args() {
		ref, ok := arg.(ir.PositionalRef)
		if ok && ref.Index >= MaxEventParams {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.args[%d]", field, i),
				Message: fmt.Sprintf("%s exceeds the maximum of %d event parameters", ref, MaxEventParams),
				Code:    ErrPositionalIndex,
			})
		}
	}

	return errs
}

// identPattern matches a Go identifier.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isValidPath checks that every dot-separated segment is an identifier.
func isValidPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if !identPattern.MatchString(seg) {
			return false
		}
	}
	return true
}
