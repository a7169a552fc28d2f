// Package errors provides the structured error taxonomy shared by the
// feature engines, the coordinator, and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes an error for logging, metrics, and response mapping.
type ErrorType string

const (
	// TypeValidation indicates malformed or out-of-policy input (HTTP 400).
	TypeValidation ErrorType = "validation"
	// TypeNotFound indicates a missing resource (HTTP 404).
	TypeNotFound ErrorType = "not_found"
	// TypeConflict indicates a state conflict, e.g. duplicate trigger or
	// already-active vote (HTTP 409).
	TypeConflict ErrorType = "conflict"
	// TypeInternal indicates a programming or server-side failure (HTTP 500).
	TypeInternal ErrorType = "internal"
	// TypeExternal indicates a collaborator failure: persistence write,
	// metadata lookup, outbound send (HTTP 502).
	TypeExternal ErrorType = "external"
)

// Error is a structured error with type, message, and optional cause.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap supports errors.Is/As on the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error type to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserActionable reports whether the error describes something a viewer can
// act on and deserves a short chat reply. Collaborator and internal
// failures stay silent toward viewers.
func (e *Error) UserActionable() bool {
	return e.Type == TypeValidation || e.Type == TypeConflict
}

// WithContext attaches a context field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func ValidationError(message string) *Error {
	return &Error{Type: TypeValidation, Message: message}
}

func NotFoundError(message string) *Error {
	return &Error{Type: TypeNotFound, Message: message}
}

func ConflictError(message string) *Error {
	return &Error{Type: TypeConflict, Message: message}
}

func InternalError(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

func ExternalError(message string, cause error) *Error {
	return &Error{Type: TypeExternal, Message: message, Cause: cause}
}

// AsStructured converts any error into a structured *Error, wrapping
// unknown errors as internal.
func AsStructured(err error) *Error {
	if err == nil {
		return nil
	}
	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return InternalError("internal error", err)
}
