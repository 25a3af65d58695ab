// Package apperr defines the error taxonomy shared by the engines and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for clients.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidArgument   Kind = "invalid_argument"
	KindInsufficientStock Kind = "insufficient_stock"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error wraps an underlying error with a kind and a safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, nil)
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message, nil)
}

func InsufficientStock(message string) *Error {
	return New(KindInsufficientStock, message, nil)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message, nil)
}

// Internal hides err behind a generic message.
func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindInsufficientStock, KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a client-safe message for err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return http.StatusText(http.StatusInternalServerError)
}
