package api

import (
	"encoding/json"
	"io"
	"net/http"

	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/validation"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Detail interface{} `json:"detail"`
	Code   string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"detail","code"}. Internal errors keep their
// details out of the response.
func writeError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorBody{Detail: stdErr.Message, Code: string(stdErr.Code)})
}

func writeValidation(w http.ResponseWriter, res *validation.ValidationResult) {
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Detail: res.Errors,
		Code:   string(errors.ErrCodeValidationFailed),
	})
}

// readBody returns the request body, capped at maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errors.NewInvalidJSONError(err))
		return nil, false
	}
	return data, true
}
