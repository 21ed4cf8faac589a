// Package errs provides the unified error type used across dbbroker.
//
// Every subsystem (dialect resolution, driver packages, the pool registry,
// the prober, the config loader) wraps its native errors into *errs.Error
// before returning them. Callers use the Is* predicates, or Retryable, to
// decide what to do without importing driver-specific packages.
//
// Usage:
//
//	// In a driver package, wrap native errors:
//	return errs.Wrap(errs.ErrKindPermissionDenied, "login failed", pgErr)
//
//	// In the prober, decide whether to try the next endpoint:
//	if !errs.Retryable(err) {
//	    return nil, "", err
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// All backends (Postgres, MySQL, SQL Server, Oracle, TDS, MinIO, …) map
// their native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown             ErrKind = iota
	ErrKindNotFound                    // no object, no bucket
	ErrKindConnectionFailed            // endpoint unreachable
	ErrKindTimeout                     // context deadline / cancellation
	ErrKindInvalidInput                // bad arguments from the caller (empty url, username, password)
	ErrKindPermissionDenied            // authentication failure
	ErrKindUnsupportedType             // unknown database type
	ErrKindCapacityExceeded            // total pool size for a database type would be exceeded
	ErrKindDriverUnavailable           // sql driver not registered in this binary
	ErrKindNoEndpoints                 // candidate list empty or entirely blank
	ErrKindCredentialTransform         // credential digest could not be computed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindUnsupportedType:
		return "unsupported_type"
	case ErrKindCapacityExceeded:
		return "capacity_exceeded"
	case ErrKindDriverUnavailable:
		return "driver_unavailable"
	case ErrKindNoEndpoints:
		return "no_endpoints"
	case ErrKindCredentialTransform:
		return "credential_transform"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all dbbroker subsystems.
// Drivers produce it; callers inspect it via the predicates below.
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

// IsNotFound reports whether err represents a missing object or bucket.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is an unreachable endpoint.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an authentication failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsUnsupportedType reports whether err names an unknown database type.
func IsUnsupportedType(err error) bool {
	return KindOf(err) == ErrKindUnsupportedType
}

// IsCapacityExceeded reports whether err is a pool capacity violation.
func IsCapacityExceeded(err error) bool {
	return KindOf(err) == ErrKindCapacityExceeded
}

// IsDriverUnavailable reports whether the sql driver for an endpoint is missing.
func IsDriverUnavailable(err error) bool {
	return KindOf(err) == ErrKindDriverUnavailable
}

// IsNoEndpoints reports whether no usable candidate endpoint was supplied.
func IsNoEndpoints(err error) bool {
	return KindOf(err) == ErrKindNoEndpoints
}

// IsCredentialTransform reports whether the credential digest failed.
func IsCredentialTransform(err error) bool {
	return KindOf(err) == ErrKindCredentialTransform
}

// Retryable reports whether a failure against one endpoint still allows
// the next candidate endpoint to be tried. Capacity violations and caller
// input errors stop the failover loop; everything else does not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrKindCapacityExceeded, ErrKindInvalidInput, ErrKindUnsupportedType, ErrKindNoEndpoints:
		return false
	default:
		return true
	}
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
