package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/issue-tracker-client/internal/errors"
)

// Validator checks request structs before they are sent, producing the same
// field-keyed shape the backend uses for its own 400 responses.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names so client and server field errors share keys
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	return &Validator{validate: v}
}

var defaultValidator = New()

// Validate checks i with the package default validator
func Validate(i any) error {
	return defaultValidator.Validate(i)
}

// Validate returns nil or an *errors.ValidationError
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return formatValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	fields := make(map[string][]string)
	for _, err := range errs {
		field := err.Field()

		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s cannot exceed %s characters", field, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of %s", field, err.Param())
		case "eqfield":
			message = fmt.Sprintf("%s must match %s", field, strings.ToLower(err.Param()))
		case "excluded_with":
			message = fmt.Sprintf("%s cannot be combined with %s", field, strings.ToLower(err.Param()))
		default:
			message = fmt.Sprintf("%s failed validation for %s", field, err.Tag())
		}
		fields[field] = append(fields[field], message)
	}
	return errors.NewValidationError(fields)
}
