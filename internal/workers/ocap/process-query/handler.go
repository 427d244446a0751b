// internal/workers/ocap/process-query/handler.go
package processquery

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/metrics"
	"ocap-agent/internal/models"
	ocapservice "ocap-agent/internal/services/ocap"
)

const TaskType = "ocap-process-query"

type QueryProcessor interface {
	ProcessQuery(ctx context.Context, query string, threadID *string, userID *int64) *models.OCAPQueryResponse
}

type Handler struct {
	config  *Config
	service QueryProcessor
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, service QueryProcessor, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		service: service,
		errors:  errors.NewErrorHandler(l),
		logger:  l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Execute runs the full pipeline. A response with status "error" becomes a
// workflow failure so the process can branch on it.
func (h *Handler) Execute(ctx context.Context, input *Input) (*models.OCAPQueryResponse, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, errors.NewValidationError("query is required", map[string]string{"query": "field required"})
	}

	resp := h.service.ProcessQuery(ctx, input.Query, input.ThreadID, input.UserID)
	if resp.Status == ocapservice.StatusError {
		return nil, errors.NewWorkflowFailedError(resp.WorkflowRunID, stderrors.New(resp.Message))
	}
	return resp, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
