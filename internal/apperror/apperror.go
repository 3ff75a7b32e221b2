// Package apperror defines the application's error taxonomy.
//
// WHY A CUSTOM ERROR PACKAGE?
// Handlers need to translate errors into HTTP status codes, and services need
// to signal WHAT went wrong (bad input? missing row? duplicate username?)
// without knowing anything about HTTP. Sentinel errors give every layer a
// shared vocabulary:
//
//	Validation     → caller sent bad input (400-equivalent)
//	Authentication → bad credentials or missing session (401-equivalent)
//	Forbidden      → authenticated but not allowed (403-equivalent)
//	NotFound       → referenced entity doesn't exist (404-equivalent)
//	Conflict       → uniqueness violation (409-equivalent)
//	Storage        → the database failed; transaction rolled back (500-equivalent)
//
// Callers match with errors.Is(err, apperror.ErrNotFound) — it unwraps the
// whole chain, so wrapping with fmt.Errorf("...: %w", err) is always safe.
//
// IMPORTANT: storage failures and "no rows" are distinct outcomes. A query
// that fails returns ErrStorage; a query that finds nothing returns
// ErrNotFound (or an empty slice for list operations). We never return an
// empty result to mask a failure.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrStorage        = errors.New("storage failure")
)

// AppError pairs a sentinel error with a human-readable message and,
// optionally, the input field that caused it.
type AppError struct {
	Err     error  // one of the sentinels above
	Message string // human-readable description
	Field   string // optional: offending input field
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ValidationFailed reports a user-correctable input problem on a field.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidCredentials reports a failed login or an invalid/expired token.
// The message is deliberately generic — it must not reveal whether the
// username exists or which part of the credentials was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrAuthentication,
		Message: "invalid credentials",
	}
}

// Forbidden reports that the caller is authenticated but lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// NotFound reports that the referenced entity does not exist.
func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

// Conflict reports a uniqueness violation (e.g. duplicate username).
func Conflict(resource, detail string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s already exists: %s", resource, detail),
	}
}

// Storage wraps a backend failure. The failed operation was rolled back;
// the caller may retry, but the failure is always surfaced, never swallowed.
func Storage(op string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, err),
		Message: fmt.Sprintf("storage failure during %s", op),
	}
}
