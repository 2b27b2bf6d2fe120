// Package faults carries the error taxonomy used across the workflow,
// gateway, and store layers. Codes describe what went wrong in business
// terms, not HTTP terms, and decide whether an operation may be retried.
package faults

import "errors"

// Code represents a failure category independent of transport layer.
type Code string

const (
	// CodeInvalidInput marks caller errors. Not retryable.
	CodeInvalidInput Code = "invalid_input"
	// CodePermissionDenied marks role policy failures. Not retryable.
	CodePermissionDenied Code = "permission_denied"
	// CodeContentUnavailable marks transient content store failures. Retryable.
	CodeContentUnavailable Code = "content_unavailable"
	// CodeContentNotFound marks data-loss class failures: a referenced blob
	// cannot be resolved. Surfaced, never auto-retried.
	CodeContentNotFound Code = "content_not_found"
	// CodeLedgerRejected means the ledger explicitly refused the transaction.
	// Not retryable without caller intervention.
	CodeLedgerRejected Code = "ledger_rejected"
	// CodeUnconfirmed means the inclusion wait timed out. Safe to re-check
	// later, unsafe to blindly resubmit.
	CodeUnconfirmed Code = "unconfirmed"
	// CodeConsistencyFault means read-back verification kept mismatching
	// after exhausting retries. Always surfaced, requires operator attention.
	CodeConsistencyFault Code = "consistency_fault"

	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"
	CodeInternal Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and used across gateway, engine, and workflow layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new fault with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new fault wrapping an existing error. If the wrapped error
// is already a fault, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a fault with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the fault code from an error chain, defaulting to
// CodeInternal for errors that never passed through this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Retryable reports whether a failure with this code may be safely retried
// by automation. Unconfirmed is deliberately excluded: re-submitting a write
// that may still land risks duplicate side effects.
func (c Code) Retryable() bool {
	return c == CodeContentUnavailable
}
