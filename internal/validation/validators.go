package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/matrix-todo/internal/apperr"
	"github.com/benvon/matrix-todo/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report json names in messages so they match the API contract
	Validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := Validate.RegisterValidation("priority", validatePriority); err != nil {
		panic(fmt.Sprintf("failed to register priority validator: %v", err))
	}
	if err := Validate.RegisterValidation("sort_field", validateSortField); err != nil {
		panic(fmt.Sprintf("failed to register sort_field validator: %v", err))
	}
}

// validatePriority validates that a string is a valid Priority enum value
func validatePriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).Valid()
}

// validateSortField validates that a string names a field the API can sort by
func validateSortField(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.SortByCreatedAt, models.SortByUpdatedAt, models.SortByDueDatetime, models.SortByPriority, models.SortByTitle:
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidatePriority validates a Priority string value
func ValidatePriority(value string) error {
	if !models.Priority(value).Valid() {
		return apperr.Validation(fmt.Sprintf("invalid priority: %s (must be 'urgent_important', 'urgent_not_important', 'not_urgent_important', or 'not_urgent_not_important')", value))
	}
	return nil
}

// Struct validates s and converts the first failure into an apperr validation error
// with a message suitable for display.
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return apperr.Validation(describe(validationErrors[0]))
	}
	return apperr.Validation("Validation failed")
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "priority":
		return fmt.Sprintf("%s must be one of urgent_important, urgent_not_important, not_urgent_important, not_urgent_not_important", field)
	case "sort_field":
		return fmt.Sprintf("%s must be one of created_at, updated_at, due_datetime, priority, title", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	default:
		return fmt.Sprintf("Validation failed: %s", fe.Error())
	}
}
