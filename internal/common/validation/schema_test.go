package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func querySchema(t *testing.T) *Schema {
	t.Helper()
	s, err := Compile(JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"query": {Type: "string"},
		},
		Required: []string{"query"},
	})
	require.NoError(t, err)
	return s
}

func TestSchema_ValidateBytes(t *testing.T) {
	s := querySchema(t)

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantField string
		wantCode  string
	}{
		{name: "valid", body: `{"query":"hello"}`, wantValid: true},
		{name: "empty string allowed", body: `{"query":""}`, wantValid: true},
		{name: "extra fields ignored", body: `{"query":"x","thread_id":"t"}`, wantValid: true},
		{name: "missing field", body: `{}`, wantField: "query", wantCode: CodeRequiredFieldMissing},
		{name: "number", body: `{"query":42}`, wantField: "query", wantCode: CodeInvalidType},
		{name: "null", body: `{"query":null}`, wantField: "query", wantCode: CodeInvalidType},
		{name: "array body", body: `[]`, wantCode: CodeInvalidType},
		{name: "not json", body: `{"query":`, wantField: "body", wantCode: CodeInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateBytes([]byte(tt.body))
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, res.Errors[0].Field)
				assert.True(t, res.HasErrors(tt.wantField))
			}
		})
	}
}

func TestSchema_ValidateInput(t *testing.T) {
	s := querySchema(t)

	assert.True(t, s.ValidateInput(map[string]interface{}{"query": "q"}).Valid)

	res := s.ValidateInput(map[string]interface{}{"other": 1})
	require.False(t, res.Valid)
	assert.Equal(t, []string{"query: field required"}, res.GetErrorMessages())
}

func TestStructValidator(t *testing.T) {
	type registerBody struct {
		Email    string `json:"email" validate:"required,email"`
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	sv := NewStructValidator()

	assert.True(t, sv.Struct(registerBody{Email: "a@example.com", Username: "a", Password: "p"}).Valid)

	res := sv.Struct(registerBody{Email: "nope", Password: "p"})
	require.False(t, res.Valid)
	assert.Len(t, res.GetErrorsForField("email"), 1)
	assert.Equal(t, "INVALID_EMAIL", res.GetErrorsForField("email")[0].Code)
	assert.Equal(t, CodeRequiredFieldMissing, res.GetErrorsForField("username")[0].Code)
}

func TestDecodeError(t *testing.T) {
	var body struct {
		Username string `json:"username"`
	}
	err := json.Unmarshal([]byte(`{"username":5}`), &body)
	require.Error(t, err)

	res := DecodeError(err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "username", res.Errors[0].Field)
	assert.Equal(t, CodeInvalidType, res.Errors[0].Code)

	err = json.Unmarshal([]byte(`{`), &body)
	assert.Equal(t, CodeInvalidJSON, DecodeError(err).Errors[0].Code)
}
