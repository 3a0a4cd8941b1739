package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind categorizes failures for the caller's handling strategy
type ErrorKind int

const (
	ErrorKindUnknown    ErrorKind = iota
	ErrorKindNetwork              // transport failure, request may not have reached the backend
	ErrorKindBackend              // backend answered with a non-success status
	ErrorKindNotFound             // an expected record was missing from a query result
	ErrorKindValidation           // input rejected before any I/O
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNetwork:
		return "network"
	case ErrorKindBackend:
		return "backend"
	case ErrorKindNotFound:
		return "not_found"
	case ErrorKindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

const maxMessageLen = 200

// Error wraps a failure with its category and the operation that produced it
type Error struct {
	Kind    ErrorKind
	Op      string // "create workers", "check out equipment", ...
	Status  int    // HTTP status, backend errors only
	Message string
	Err     error
}

// Error renders a single line suitable for showing to a user
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch e.Kind {
	case ErrorKindBackend:
		fmt.Fprintf(&b, "backend returned status %d", e.Status)
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	case ErrorKindNetwork:
		b.WriteString("network error")
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	default:
		b.WriteString(e.Message)
	}
	if e.Err != nil && e.Kind != ErrorKindBackend {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return oneLine(b.String())
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the same request could succeed
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrorKindNetwork:
		return true
	case ErrorKindBackend:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// NewNetworkError wraps a transport failure
func NewNetworkError(op string, err error) *Error {
	return &Error{Kind: ErrorKindNetwork, Op: op, Err: err}
}

// NewBackendError records a non-success response and its body
func NewBackendError(op string, status int, body string) *Error {
	return &Error{Kind: ErrorKindBackend, Op: op, Status: status, Message: body}
}

// NewNotFoundError reports a record missing from a query result
func NewNotFoundError(op, message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Op: op, Message: message}
}

// NewValidationError reports input rejected before any I/O
func NewValidationError(op, message string) *Error {
	return &Error{Kind: ErrorKindValidation, Op: op, Message: message}
}

// KindOf returns the category of the first *Error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

func IsNetwork(err error) bool    { return KindOf(err) == ErrorKindNetwork }
func IsBackend(err error) bool    { return KindOf(err) == ErrorKindBackend }
func IsNotFound(err error) bool   { return KindOf(err) == ErrorKindNotFound }
func IsValidation(err error) bool { return KindOf(err) == ErrorKindValidation }

// StatusCode returns the HTTP status carried by a backend error, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrorKindBackend {
		return e.Status
	}
	return 0
}

// IsRetryable reports whether err is a transient failure
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxMessageLen {
		s = s[:maxMessageLen] + "..."
	}
	return s
}
