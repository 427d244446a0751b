package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidJSON          = "INVALID_JSON"
)

// JSONSchema defines the structure for request schemas
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties,omitempty"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties *bool               `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        interface{}         `json:"type,omitempty"` // string or []string, e.g. ["string","null"]
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Pattern     *string             `json:"pattern,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Format      string              `json:"format,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled request schema. It is safe for concurrent use.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile turns a JSONSchema definition into a reusable validator.
func Compile(def JSONSchema) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for schemas declared at startup.
func MustCompile(def JSONSchema) *Schema {
	s, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes checks a raw JSON document. A body that is not JSON yields
// a single INVALID_JSON error rather than a Go error.
func (s *Schema) ValidateBytes(body []byte) *ValidationResult {
	if !json.Valid(body) {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "body",
				Message: "request body must be valid JSON",
				Code:    CodeInvalidJSON,
			}},
		}
	}
	return s.validate(gojsonschema.NewBytesLoader(body))
}

// ValidateInput checks an already decoded document, such as job variables.
func (s *Schema) ValidateInput(input map[string]interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(input))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "body",
				Message: err.Error(),
				Code:    CodeInvalidJSON,
			}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, toValidationError(re))
	}
	return &ValidationResult{Valid: false, Errors: errs}
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	switch re.Type() {
	case "required":
		// gojsonschema reports the parent as the field for missing properties.
		prop, _ := re.Details()["property"].(string)
		if field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY || field == "" {
			field = prop
		} else {
			field = field + "." + prop
		}
		return ValidationError{Field: field, Message: "field required", Code: CodeRequiredFieldMissing}
	case "invalid_type":
		return ValidationError{Field: field, Message: re.Description(), Code: CodeInvalidType}
	default:
		return ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		}
	}
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

func Bool(b bool) *bool { return &b }

func Int(i int) *int { return &i }
