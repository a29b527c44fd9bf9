package ir

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrorCode categorizes binding errors.
type ErrorCode string

const (
	// ErrCodeParse indicates a malformed literal token.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeMissingMember indicates a property/field lookup failed mid-path.
	ErrCodeMissingMember ErrorCode = "MISSING_MEMBER"

	// ErrCodeMissingMethod indicates no method matched the argument types exactly.
	ErrCodeMissingMethod ErrorCode = "MISSING_METHOD"

	// ErrCodeIndexOutOfRange indicates a positional reference beyond the event's parameters.
	ErrCodeIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// ErrCodeMissingEvent indicates the host element exposes no such event.
	ErrCodeMissingEvent ErrorCode = "MISSING_EVENT"

	// ErrCodeBoundValue indicates an external bound value could not be resolved.
	ErrCodeBoundValue ErrorCode = "BOUND_VALUE"
)

// BindError is a structural binding error.
//
// Structural errors are fatal for the binding they belong to: they are
// returned synchronously to the caller and never retried.
type BindError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the attempted member path, if any.
	Path string

	// Token is the offending argument token (parse errors).
	Token string

	// ArgTypes are the attempted argument types (method resolution).
	ArgTypes []reflect.Type

	// Suggestion is an optional "did you mean" hint.
	Suggestion string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *BindError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, " (%s)", e.Suggestion)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *BindError) Unwrap() error {
	return e.Err
}

// FormatCall renders "path(T1,T2)" the way missing-method messages show it.
func FormatCall(path string, types []reflect.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		if t == nil {
			names[i] = "nil"
			continue
		}
		names[i] = t.String()
	}
	return path + "(" + strings.Join(names, ",") + ")"
}

// NewParseError creates a BindError for a malformed literal token.
func NewParseError(token string) *BindError {
	return &BindError{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("cannot parse argument %q; wrap strings in back-ticks", token),
		Token:   token,
	}
}

// NewMissingMemberError creates a BindError for a failed mid-path lookup.
func NewMissingMemberError(path, member string, on reflect.Type, argTypes []reflect.Type) *BindError {
	msg := fmt.Sprintf("cannot resolve member %q of %s while resolving %s", member, typeLabel(on), FormatCall(path, argTypes))
	return &BindError{
		Code:     ErrCodeMissingMember,
		Message:  msg,
		Path:     path,
		ArgTypes: argTypes,
	}
}

// NewMissingMethodError creates a BindError for a failed terminal method lookup.
// The message contains the full path and the attempted argument type list.
func NewMissingMethodError(path string, argTypes []reflect.Type) *BindError {
	return &BindError{
		Code:     ErrCodeMissingMethod,
		Message:  "cannot find " + FormatCall(path, argTypes),
		Path:     path,
		ArgTypes: argTypes,
	}
}

// NewIndexOutOfRangeError creates a BindError for a bad positional reference.
func NewIndexOutOfRangeError(ref PositionalRef, paramCount int) *BindError {
	return &BindError{
		Code:    ErrCodeIndexOutOfRange,
		Message: fmt.Sprintf("%s is not available: event has %d parameter(s)", ref.String(), paramCount),
		Token:   ref.String(),
	}
}

// NewMissingEventError creates a BindError for an event the element lacks.
func NewMissingEventError(event string) *BindError {
	return &BindError{
		Code:    ErrCodeMissingEvent,
		Message: fmt.Sprintf("element has no event %q", event),
		Path:    event,
	}
}

// NewBoundValueError creates a BindError for a failed external value pull.
func NewBoundValueError(path string, slot int, descriptor any, err error) *BindError {
	return &BindError{
		Code:    ErrCodeBoundValue,
		Message: fmt.Sprintf("cannot resolve bound value %v for slot %d", descriptor, slot),
		Path:    path,
		Err:     err,
	}
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

func hasCode(err error, code ErrorCode) bool {
	var be *BindError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

// IsParseError returns true if err is a literal parse error.
func IsParseError(err error) bool { return hasCode(err, ErrCodeParse) }

// IsMissingMember returns true if err is a mid-path member lookup failure.
func IsMissingMember(err error) bool { return hasCode(err, ErrCodeMissingMember) }

// IsMissingMethod returns true if err is a terminal method lookup failure.
func IsMissingMethod(err error) bool { return hasCode(err, ErrCodeMissingMethod) }

// IsIndexOutOfRange returns true if err is a bad positional reference.
func IsIndexOutOfRange(err error) bool { return hasCode(err, ErrCodeIndexOutOfRange) }

// IsMissingEvent returns true if err reports an unknown host event.
func IsMissingEvent(err error) bool { return hasCode(err, ErrCodeMissingEvent) }

// CodeOf extracts the error code, or "" if err is not a BindError.
func CodeOf(err error) ErrorCode {
	var be *BindError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
