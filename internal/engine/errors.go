package engine

import (
	"errors"
	"fmt"
)

// EngineError represents a failure of the binder itself, as opposed to the
// structural binding errors of package ir (ir.BindError).
//
// Engine errors include:
//   - Closed: the Binder was closed before the call
//   - Invalid event: an event source whose signature is not a func type
//   - No events: a declaration bound without any event name
type EngineError struct {
	// Code identifies the error category.
	Code EngineErrorCode

	// Message is a human-readable description.
	Message string

	// Event names the affected event, if any.
	Event string
}

// EngineErrorCode categorizes engine errors.
type EngineErrorCode string

const (
	// ErrCodeClosed indicates the Binder has been closed.
	ErrCodeClosed EngineErrorCode = "BINDER_CLOSED"

	// ErrCodeInvalidEvent indicates an event source with a non-func signature.
	ErrCodeInvalidEvent EngineErrorCode = "INVALID_EVENT"

	// ErrCodeNoEvents indicates a declaration without event names.
	ErrCodeNoEvents EngineErrorCode = "NO_EVENTS"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsClosedError returns true if the error reports a closed Binder.
// Uses errors.As to handle wrapped errors.
func IsClosedError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeClosed
	}
	return false
}

// IsInvalidEventError returns true if the error reports a non-func event signature.
// Uses errors.As to handle wrapped errors.
func IsInvalidEventError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeInvalidEvent
	}
	return false
}

func newClosedError() *EngineError {
	return &EngineError{Code: ErrCodeClosed, Message: "binder is closed"}
}

func newInvalidEventError(event string, kind fmt.Stringer) *EngineError {
	return &EngineError{
		Code:    ErrCodeInvalidEvent,
		Message: fmt.Sprintf("event signature must be a func type, got %s", kind),
		Event:   event,
	}
}
