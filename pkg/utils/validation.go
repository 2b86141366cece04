package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "cms-backend/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct validates a struct based on its validation tags. Failures
// are returned as a VALIDATION AppError with one detail per field.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.NewValidationError(err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	details := make(map[string]interface{}, len(validationErrors))
	for _, e := range validationErrors {
		msg := formatFieldError(e)
		messages = append(messages, msg)
		details[lowerFirst(e.Field())] = msg
	}
	return pkgerrors.NewValidationError(strings.Join(messages, "; ")).WithDetails(details)
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := lowerFirst(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "excludesall":
		return fmt.Sprintf("%s must not contain any of %q", field, e.Param())
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
