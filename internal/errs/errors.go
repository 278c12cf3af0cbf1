// Package errs provides the unified error type used across nlsql.
//
// Every subsystem (database adapters, the LLM client, the object store, …)
// wraps its native errors into *errs.Error before returning them. Callers use
// the Is* predicates to branch on the failure class without importing
// driver-specific packages.
//
// Usage:
//
//	// In an adapter — wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", pgErr)
//
//	// In a handler — check error kind:
//	if errs.IsInvalidQuery(err) {
//	    http.Error(w, err.Error(), http.StatusBadRequest)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// SQLite, PostgreSQL, MySQL, the LLM endpoint and MinIO all map their native
// errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown            ErrKind = iota
	ErrKindNotFound                   // no rows, no object, unknown table
	ErrKindConnectionFailed           // cannot reach or authenticate to the backend
	ErrKindTimeout                    // context deadline / cancellation
	ErrKindQueryFailed                // the driver rejected or failed a statement
	ErrKindInvalidInput               // bad arguments from the caller
	ErrKindPermissionDenied           // access denied
	ErrKindUnsupportedDialect         // connection string scheme has no adapter
	ErrKindInvalidQuery               // statement rejected by the read-only gate
	ErrKindGenerationFailed           // the language model produced no usable SQL
	ErrKindClosed                     // operation on a closed adapter
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
	case ErrKindUnsupportedDialect:
		return "unsupported_dialect"
	case ErrKindInvalidQuery:
		return "invalid_query"
	case ErrKindGenerationFailed:
		return "generation_failed"
	case ErrKindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all nlsql subsystems.
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

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
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

// IsQueryFailed reports whether err is a statement execution failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsUnsupportedDialect reports whether err came from an unrecognised or
// unimplemented connection string scheme.
func IsUnsupportedDialect(err error) bool {
	return KindOf(err) == ErrKindUnsupportedDialect
}

// IsInvalidQuery reports whether err is a read-only policy rejection.
func IsInvalidQuery(err error) bool {
	return KindOf(err) == ErrKindInvalidQuery
}

// IsGenerationFailed reports whether the language model failed to produce SQL.
func IsGenerationFailed(err error) bool {
	return KindOf(err) == ErrKindGenerationFailed
}

// IsClosed reports whether err was returned by an adapter that was already closed.
func IsClosed(err error) bool {
	return KindOf(err) == ErrKindClosed
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
