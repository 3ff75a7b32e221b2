// Package validation wraps go-playground/validator for request structs.
//
// Handlers declare their expectations as struct tags:
//
//	type registerRequest struct {
//	    Username string `json:"username" validate:"required,min=3,max=50"`
//	    Email    string `json:"email"    validate:"required,email"`
//	    Password string `json:"password" validate:"required,min=8,max=72"`
//	}
//
// and call validation.Check(req). Failures come back as apperror.ErrValidation
// with the JSON field name (not the Go field name) so API error messages match
// what the client actually sent.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/karim/bloghub/internal/apperror"
)

// A single validator instance is safe for concurrent use and caches struct
// metadata, so we build it once at package init.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under the JSON tag name, stripping ",omitempty" etc.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" || name == "-" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			return name[:i]
		}
		return name
	})

	return v
}

// Check validates a request struct. Returns nil on success, or an
// apperror.ValidationFailed describing the first offending field.
func Check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		// Non-field error (e.g. passing a non-struct) is a programmer bug,
		// not user input — surface it as-is.
		return err
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), message(fe))
}

// message renders a human-readable description for the common tags.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
