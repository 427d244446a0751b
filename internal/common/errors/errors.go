// Package errors provides the OCAP error taxonomy shared by the HTTP API and
// the BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeRequiredFieldMissing ErrorCode = "REQUIRED_FIELD_MISSING"
	ErrCodeInvalidType          ErrorCode = "INVALID_TYPE"
	ErrCodeInvalidJSON          ErrorCode = "INVALID_JSON"

	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeInvalidCredentials   ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInactiveUser         ErrorCode = "INACTIVE_USER"
	ErrCodeEmailRegistered      ErrorCode = "EMAIL_ALREADY_REGISTERED"
	ErrCodeUsernameTaken        ErrorCode = "USERNAME_TAKEN"
	ErrCodeWeakPassword         ErrorCode = "WEAK_PASSWORD"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeRecordNotFound           ErrorCode = "RECORD_NOT_FOUND"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeIndexBuildFailed              ErrorCode = "INDEX_BUILD_FAILED"

	ErrCodeMemoryUnavailable ErrorCode = "MEMORY_UNAVAILABLE"
	ErrCodeMemoryReadFailed  ErrorCode = "MEMORY_READ_FAILED"
	ErrCodeMemoryWriteFailed ErrorCode = "MEMORY_WRITE_FAILED"

	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRequestFailed   ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMResponseInvalid ErrorCode = "LLM_RESPONSE_INVALID"

	ErrCodeWorkflowFailed ErrorCode = "WORKFLOW_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// As unwraps err into a StandardError when one is in the chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError carries field-level problems in Metadata["fields"].
func NewValidationError(details string, fields interface{}) *StandardError {
	e := newError(ErrCodeValidationFailed, "Request validation failed", details, false)
	if fields != nil {
		e.Metadata = map[string]interface{}{"fields": fields}
	}
	return e
}

func NewInvalidJSONError(err error) *StandardError {
	return newError(ErrCodeInvalidJSON, "Request body is not valid JSON", err.Error(), false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Could not validate credentials", details, false)
}

func NewInvalidCredentialsError() *StandardError {
	return newError(ErrCodeInvalidCredentials, "Incorrect username or password", "", false)
}

func NewInactiveUserError(username string) *StandardError {
	return newError(ErrCodeInactiveUser, "User account is inactive", fmt.Sprintf("username: %s", username), false)
}

func NewEmailRegisteredError(email string) *StandardError {
	return newError(ErrCodeEmailRegistered, "Email already registered", fmt.Sprintf("email: %s", email), false)
}

func NewUsernameTakenError(username string) *StandardError {
	return newError(ErrCodeUsernameTaken, "Username already taken", fmt.Sprintf("username: %s", username), false)
}

func NewWeakPasswordError(reason string) *StandardError {
	return newError(ErrCodeWeakPassword, reason, "", false)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewRecordNotFoundError(entity, key string) *StandardError {
	return newError(ErrCodeRecordNotFound, fmt.Sprintf("%s not found", entity), key, false)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout",
		fmt.Sprintf("queryType: %s", queryType), true)
}

func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false)
}

func NewIndexBuildFailedError(indexName string, err error) *StandardError {
	return newError(ErrCodeIndexBuildFailed, "Index build failed",
		fmt.Sprintf("indexName: %s, error: %s", indexName, err.Error()), false)
}

func NewMemoryUnavailableError() *StandardError {
	return newError(ErrCodeMemoryUnavailable, "Workflow memory is not configured", "", false)
}

func NewMemoryReadFailedError(key string, err error) *StandardError {
	return newError(ErrCodeMemoryReadFailed, "Workflow memory read failed",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewMemoryWriteFailedError(key string, err error) *StandardError {
	return newError(ErrCodeMemoryWriteFailed, "Workflow memory write failed",
		fmt.Sprintf("key: %s, error: %s", key, err.Error()), true)
}

func NewLLMTimeoutError(timeout time.Duration) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM call timeout",
		fmt.Sprintf("LLM call exceeded %s timeout", timeout), true)
}

func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "LLM API error", err.Error(), true)
}

func NewLLMResponseInvalidError(details string) *StandardError {
	return newError(ErrCodeLLMResponseInvalid, "LLM response could not be parsed", details, false)
}

func NewWorkflowFailedError(workflowRunID string, err error) *StandardError {
	e := newError(ErrCodeWorkflowFailed, "OCAP workflow failed", err.Error(), false)
	e.Metadata = map[string]interface{}{"workflow_run_id": workflowRunID}
	return e
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeMemoryReadFailed,
		ErrCodeMemoryWriteFailed,
		ErrCodeLLMRequestFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeSearchTimeout:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN error codes equal the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// HTTPStatus maps an error code onto the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeRequiredFieldMissing, ErrCodeInvalidType:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidJSON, ErrCodeEmailRegistered, ErrCodeUsernameTaken, ErrCodeWeakPassword:
		return http.StatusBadRequest
	case ErrCodeAuthenticationFailed, ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case ErrCodeInactiveUser:
		return http.StatusForbidden
	case ErrCodeRecordNotFound, ErrCodeIndexNotFound:
		return http.StatusNotFound
	case ErrCodeMemoryUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeSearchTimeout, ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeElasticsearchConnectionFailed, ErrCodeSearchQueryFailed,
		ErrCodeLLMRequestFailed, ErrCodeLLMResponseInvalid:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID_TYPE") ||
		strings.Contains(codeStr, "REQUIRED") || strings.Contains(codeStr, "JSON"):
		return "VALIDATION"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "CREDENTIALS") ||
		strings.Contains(codeStr, "USER") || strings.Contains(codeStr, "PASSWORD"):
		return "AUTH"
	case strings.Contains(codeStr, "REGISTERED") || strings.Contains(codeStr, "TAKEN"):
		return "CONFLICT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY_EXECUTION") ||
		strings.Contains(codeStr, "RECORD"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") ||
		strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "MEMORY"):
		return "CACHE"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
