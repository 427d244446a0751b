package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/validation"
	"ocap-agent/internal/models"
)

const (
	defaultWorkflowLimit = 10
	maxWorkflowLimit     = 100
)

// ocapQuery runs the full pipeline for the authenticated user. Pipeline
// failures come back as a 200 with status "error" in the body.
func (s *Server) ocapQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if res := s.querySchema.ValidateBytes(body); !res.Valid {
		writeValidation(w, res)
		return
	}
	var req models.OCAPQueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeValidation(w, validation.DecodeError(err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeValidation(w, &validation.ValidationResult{Errors: []validation.ValidationError{{
			Field: "query", Message: "query must not be blank", Code: "MIN_LENGTH_VIOLATION",
		}}})
		return
	}
	if req.ThreadID != nil && strings.TrimSpace(*req.ThreadID) == "" {
		req.ThreadID = nil
	}

	user, _ := CurrentUser(r.Context())
	resp := s.deps.OCAP.ProcessQuery(r.Context(), req.Query, req.ThreadID, &user.ID)
	writeJSON(w, http.StatusOK, resp)
}

type threadWorkflowsResponse struct {
	ThreadID  string                   `json:"thread_id"`
	Count     int                      `json:"count"`
	Workflows []*models.WorkflowRecord `json:"workflows"`
}

func (s *Server) threadWorkflows(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("thread_id")

	limit := defaultWorkflowLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxWorkflowLimit {
			writeValidation(w, &validation.ValidationResult{Errors: []validation.ValidationError{{
				Field:   "limit",
				Message: "limit must be an integer between 1 and " + strconv.Itoa(maxWorkflowLimit),
				Code:    validation.CodeInvalidType,
			}}})
			return
		}
		limit = n
	}

	records, err := s.deps.OCAP.ThreadWorkflows(r.Context(), threadID, limit)
	if err != nil {
		if stdErr, ok := errors.As(err); !ok || stdErr.Code != errors.ErrCodeMemoryUnavailable {
			s.logger.Error("thread workflow lookup failed", map[string]interface{}{
				"thread_id": threadID,
				"error":     err.Error(),
			})
		}
		writeError(w, err)
		return
	}
	if records == nil {
		records = []*models.WorkflowRecord{}
	}
	writeJSON(w, http.StatusOK, threadWorkflowsResponse{ThreadID: threadID, Count: len(records), Workflows: records})
}
