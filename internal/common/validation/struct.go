package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StructValidator validates decoded request DTOs by their `validate` tags and
// reports fields by their JSON names.
type StructValidator struct {
	validate *validator.Validate
}

func NewStructValidator() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &StructValidator{validate: v}
}

// Struct runs tag validation on v.
func (sv *StructValidator) Struct(v interface{}) *ValidationResult {
	err := sv.validate.Struct(v)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "body", Message: err.Error(), Code: "INVALID_INPUT"}},
		}
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, fieldError(fe))
	}
	return &ValidationResult{Valid: false, Errors: out}
}

// DecodeError converts a json decoding failure into field-level detail, so
// a wrongly typed field reads the same as a schema type mismatch.
func DecodeError(err error) *ValidationResult {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("Invalid type. Expected: %s, given: %s", typeErr.Type.Kind(), typeErr.Value),
				Code:    CodeInvalidType,
			}},
		}
	}
	return &ValidationResult{
		Valid:  false,
		Errors: []ValidationError{{Field: "body", Message: "request body must be valid JSON", Code: CodeInvalidJSON}},
	}
}

func fieldError(fe validator.FieldError) ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return ValidationError{Field: field, Message: "field required", Code: CodeRequiredFieldMissing}
	case "email":
		return ValidationError{Field: field, Message: "value is not a valid email address", Code: "INVALID_EMAIL"}
	case "min":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at least %s characters", fe.Param()),
			Code:    "MIN_LENGTH_VIOLATION",
		}
	case "max":
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at most %s characters", fe.Param()),
			Code:    "MAX_LENGTH_VIOLATION",
		}
	default:
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
			Code:    strings.ToUpper(fe.Tag()),
		}
	}
}
