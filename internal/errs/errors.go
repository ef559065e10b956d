// Package errs provides the unified error type used across schemacache.
//
// Every subsystem (database dialects, file stores, cache stores) wraps its
// native errors into *errs.Error before returning them. Callers use the Is*
// predicates to decide what to do without importing driver packages.
//
// Usage:
//
//	// In a dialect, wrap native errors:
//	return errs.Wrap(errs.ErrKindPermissionDenied, "describe table", pgErr)
//
//	// In a builder, check error kind:
//	if errs.IsPermissionDenied(err) {
//	    continue
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing backend-specific codes.
type ErrKind int

const (
	ErrKindUnknown           ErrKind = iota
	ErrKindNotFound                  // no rows, no object, no connection
	ErrKindConnectionFailed          // cannot reach the backend
	ErrKindTimeout                   // context deadline / cancellation
	ErrKindQueryFailed               // SQL or storage operation error
	ErrKindInvalidInput              // bad arguments from the caller
	ErrKindPermissionDenied          // access denied on a table, bucket or object
	ErrKindInvalidConnection         // connection record cannot be used at all
	ErrKindUnsupported               // driver kind or native type we do not handle
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindInvalidConnection:
		return "invalid_connection"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by schemacache subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind ErrKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsInvalidConnection reports whether err means the connection record is unusable.
func IsInvalidConnection(err error) bool {
	return KindOf(err) == ErrKindInvalidConnection
}

func IsUnsupported(err error) bool {
	return KindOf(err) == ErrKindUnsupported
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
