package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation, ErrAuthentication, ErrForbidden,
		ErrNotFound, ErrConflict, ErrStorage,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v — taxonomy must be disjoint", a, b)
			}
		}
	}
}

func TestNotFound_MatchesSentinel(t *testing.T) {
	err := NotFound("post", 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFound() is not ErrNotFound: %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Error("NotFound() must not match ErrConflict")
	}
}

func TestWrappedErrorStillMatches(t *testing.T) {
	// Services wrap repo errors with context; errors.Is must still see through.
	inner := Conflict("user", "username taken")
	wrapped := fmt.Errorf("registering user: %w", inner)

	if !errors.Is(wrapped, ErrConflict) {
		t.Error("wrapped Conflict no longer matches ErrConflict")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("wrapped error no longer matches *AppError")
	}
	if appErr.Message == "" {
		t.Error("AppError lost its message through wrapping")
	}
}

func TestStorage_CarriesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("inserting post", cause)

	if !errors.Is(err, ErrStorage) {
		t.Error("Storage() is not ErrStorage")
	}
	if !errors.Is(err, cause) {
		t.Error("Storage() must preserve the underlying cause in the chain")
	}
}

func TestValidationFailed_RecordsField(t *testing.T) {
	err := ValidationFailed("email", "email is required")
	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("ValidationFailed() is not ErrValidation")
	}
}
