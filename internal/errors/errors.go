// Package errors defines the structured error taxonomy for the issuance
// core. Batch-fatal validation problems, transient and permanent ledger
// faults, publication degradation, and persistence failures all need to be
// distinguishable by callers, so every error produced by the core carries a
// code from this package.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., unique constraint violation).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data, including an empty eligible
	// recipient set or an unknown event. Validation errors are batch-fatal and
	// never retried.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeTransientLedger indicates a ledger fault worth retrying
	// (rate limiting, congestion, network trouble, confirmation timeout).
	ErrCodeTransientLedger ErrorCode = "transient_ledger"
	// ErrCodePermanentLedger indicates a ledger fault retries cannot fix,
	// such as a missing issuance authority.
	ErrCodePermanentLedger ErrorCode = "permanent_ledger"
	// ErrCodePublication indicates content-addressed publication failed.
	// Publication errors are recoverable by degradation, not fatal.
	ErrCodePublication ErrorCode = "publication"
	// ErrCodePersistence indicates the outcome of a confirmed ledger
	// mutation could not be recorded. Distinct from issuance failure: the
	// certificate exists on the ledger but not in the store.
	ErrCodePersistence ErrorCode = "persistence"
)

// AppError is a structured application error with a code, message, and
// optional cause. It supports errors.Is and errors.As through Unwrap.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Remediation is optional operator-facing guidance attached to ledger
	// faults (e.g. "wait for the provider rate limit window to reset").
	Remediation string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// TransientLedger wraps a retryable ledger fault.
func TransientLedger(err error, message string) *AppError {
	return Wrap(err, ErrCodeTransientLedger, message)
}

// PermanentLedger wraps a non-retryable ledger fault.
func PermanentLedger(err error, message string) *AppError {
	return Wrap(err, ErrCodePermanentLedger, message)
}

// Publication wraps a content-addressed storage failure.
func Publication(err error, message string) *AppError {
	return Wrap(err, ErrCodePublication, message)
}

// Persistence wraps a store failure that happened after a confirmed ledger
// mutation.
func Persistence(err error, message string) *AppError {
	return Wrap(err, ErrCodePersistence, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithRemediation attaches operator guidance to the error and returns it.
func (e *AppError) WithRemediation(text string) *AppError {
	e.Remediation = text
	return e
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// IsTransientLedger checks if an error is a retryable ledger fault.
func IsTransientLedger(err error) bool { return isCode(err, ErrCodeTransientLedger) }

// IsPermanentLedger checks if an error is a non-retryable ledger fault.
func IsPermanentLedger(err error) bool { return isCode(err, ErrCodePermanentLedger) }

// IsPublication checks if an error is a publication failure.
func IsPublication(err error) bool { return isCode(err, ErrCodePublication) }

// IsPersistence checks if an error is a persistence failure.
func IsPersistence(err error) bool { return isCode(err, ErrCodePersistence) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetRemediation returns attached operator guidance, if any.
func GetRemediation(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Remediation
	}
	return ""
}
