// Package apperr defines the error taxonomy surfaced by the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Kind classifies an error by how it is reported to the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindTooManyRequests
)

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Error is an API error with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error

	pcs []uintptr
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

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// Stack renders the call stack captured when the error was created.
func (e *Error) Stack() string {
	if len(e.pcs) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, message string, err error, details []string) *Error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: message, Details: details, Err: err, pcs: pcs[:n]}
}

func BadRequest(message string, details ...string) *Error {
	return newError(KindBadRequest, message, nil, details)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil, nil)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message, nil, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message, nil, nil)
}

func Conflict(message string) *Error {
	return newError(KindConflict, message, nil, nil)
}

func TooManyRequests(message string) *Error {
	return newError(KindTooManyRequests, message, nil, nil)
}

// Internal wraps err behind a caller-facing message.
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err, nil)
}

// Wrap attaches a cause to an error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return newError(kind, message, err, nil)
}

// As extracts the *Error carried by err, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
