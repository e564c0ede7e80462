// Package apperr carries typed domain errors from the services to the HTTP
// layer. Services return these instead of raw echo errors so that the same
// failure maps consistently onto a status code no matter which handler
// surfaces it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindValidation marks malformed or incomplete input.
	KindValidation Kind = iota
	// KindNotFound marks a missing entity.
	KindNotFound
	// KindConflict marks a uniqueness or overlap violation.
	KindConflict
	// KindInvariant marks a request that is well formed but not allowed in
	// the entity's current state.
	KindInvariant
)

// Error is a domain error with a classification.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

func newError(kind Kind, format string, args ...any) *Error {
	var wrapped error
	for _, a := range args {
		if err, ok := a.(error); ok {
			wrapped = err
		}
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		err:     wrapped,
	}
}

// Validation returns a validation error (HTTP 400).
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// NotFound returns a missing-entity error (HTTP 404).
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// Conflict returns a uniqueness or overlap error (HTTP 409).
func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, format, args...)
}

// Invariant returns a state-rule violation error (HTTP 422).
func Invariant(format string, args ...any) *Error {
	return newError(KindInvariant, format, args...)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to its HTTP status code. Unclassified errors map
// to 500.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvariant:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts a service error to an echo HTTP error. Unclassified errors
// become opaque 500s so internal details never reach clients.
func ToHTTP(err error) *echo.HTTPError {
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return echo.NewHTTPError(HTTPStatus(err), e.Message)
}
