// Package ocap is the application service behind the OCAP query endpoints.
package ocap

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ocap-agent/internal/common/aws"
	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/metrics"
	"ocap-agent/internal/models"
	"ocap-agent/internal/ocap"
	"ocap-agent/internal/tasks"
)

const (
	StatusProcessed = "processed"
	StatusError     = "error"

	MessageSuccess      = "Query processed successfully"
	NoMemorySummary     = "No previous conversation context"
	MemoryErrorSummary  = "Error retrieving memory"
	maxErrorMessageSize = 1000
)

type GraphRunner interface {
	Run(ctx context.Context, in ocap.Input) (*ocap.State, error)
}

type TaskSubmitter interface {
	Submit(taskType string, payload interface{}) bool
}

type Memory interface {
	Available() bool
	Save(ctx context.Context, rec *models.WorkflowRecord) error
	ThreadWorkflows(ctx context.Context, threadID string, limit int) ([]*models.WorkflowRecord, error)
}

type EventPublisher interface {
	WorkflowCompleted(ctx context.Context, event aws.WorkflowCompletedEvent) error
}

type WorkflowRecorder interface {
	RecordWorkflow(ctx context.Context, classification, status string, duration time.Duration)
}

// Deps are the collaborators of the service. Memory, Notifier and Recorder
// may be nil-safe implementations of a disabled feature.
type Deps struct {
	Graph    GraphRunner
	Tasks    TaskSubmitter
	Memory   Memory
	Notifier EventPublisher
	Recorder WorkflowRecorder
}

type Service struct {
	deps         Deps
	queryTimeout time.Duration
	tracer       trace.Tracer
	logger       logger.Logger
	now          func() time.Time
	newID        func() string
}

func NewService(deps Deps, cfg config.OCAPConfig, log logger.Logger) *Service {
	timeout := config.GetDuration(cfg.QueryTimeout)
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Service{
		deps:         deps,
		queryTimeout: timeout,
		tracer:       otel.Tracer("ocap-agent/service"),
		logger:       log.WithFields(map[string]interface{}{"component": "ocap_service"}),
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// ProcessQuery runs the graph for one query and always answers: failures
// come back as a response with status "error".
func (s *Service) ProcessQuery(ctx context.Context, query string, threadID *string, userID *int64) *models.OCAPQueryResponse {
	runID := s.newID()
	start := s.now()
	tid := models.ResolveThreadID(threadID, userID, query)

	log := s.logger.WithFields(map[string]interface{}{
		"workflowRunId": runID,
		"threadId":      tid,
	})
	log.Info("processing query", map[string]interface{}{"query": truncate(query, 50)})

	s.submit(tasks.TypeCreateOrUpdateSession, tasks.SessionPayload{
		ThreadID:              tid,
		UserID:                userID,
		IncrementMessageCount: true,
	})
	s.submit(tasks.TypeCreateWorkflowExecution, tasks.CreateWorkflowPayload{
		WorkflowRunID: runID,
		ThreadID:      tid,
		UserID:        userID,
		Query:         query,
	})

	attrs := []attribute.KeyValue{
		attribute.String("workflow.run_id", runID),
		attribute.String("thread.id", tid),
		attribute.String("query.text", truncate(query, 100)),
	}
	if userID != nil {
		attrs = append(attrs, attribute.Int64("user.id", *userID))
	}
	ctx, span := s.tracer.Start(ctx, "ocap_service.process_query", trace.WithAttributes(attrs...))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	state, err := s.deps.Graph.Run(runCtx, ocap.Input{
		Query:         query,
		WorkflowRunID: runID,
		ThreadID:      tid,
		UserID:        userID,
	})
	end := s.now()
	duration := end.Sub(start)
	durationMs := duration.Milliseconds()

	if err != nil {
		msg := errorText(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Bool("error", true))

		stored := truncate(msg, maxErrorMessageSize)
		s.submit(tasks.TypeUpdateWorkflowExecution, tasks.UpdateWorkflowPayload{
			WorkflowRunID: runID,
			ThreadID:      tid,
			UserID:        userID,
			Update: models.WorkflowUpdate{
				Status:       models.WorkflowFailed,
				ErrorMessage: &stored,
				CompletedAt:  &end,
				DurationMs:   &durationMs,
			},
		})
		s.record(ctx, "", StatusError, duration)
		log.Error("error processing query", map[string]interface{}{"error": msg, "durationMs": durationMs})

		return &models.OCAPQueryResponse{
			Query:               query,
			ThreadID:            tid,
			WorkflowRunID:       runID,
			Keywords:            []string{},
			RegistryMatches:     []models.RegistryMatch{},
			QuerySpecSummary:    "",
			ThreadMemorySummary: MemoryErrorSummary,
			Status:              StatusError,
			Message:             "Error processing query: " + msg,
		}
	}

	classification := state.ClassificationPtr()
	span.SetAttributes(
		attribute.String("result.classification", valueOr(classification, "unknown")),
		attribute.Int("result.keywords_count", len(state.Keywords)),
		attribute.Int("result.registry_matches_count", len(state.RegistryMatches)),
		attribute.Bool("result.has_response", state.Response != ""),
	)
	span.SetStatus(codes.Ok, "")

	response := state.Response
	s.submit(tasks.TypeUpdateWorkflowExecution, tasks.UpdateWorkflowPayload{
		WorkflowRunID: runID,
		ThreadID:      tid,
		UserID:        userID,
		Update: models.WorkflowUpdate{
			Status:         models.WorkflowCompleted,
			Response:       &response,
			Classification: classification,
			CompletedAt:    &end,
			DurationMs:     &durationMs,
		},
	})

	s.remember(ctx, log, state, end)
	s.publish(ctx, log, state, durationMs, end)
	s.record(ctx, string(state.Classification), StatusProcessed, duration)

	summary := NoMemorySummary
	if state.Memory.ThreadMemorySummary != nil {
		summary = *state.Memory.ThreadMemorySummary
	}
	var formatted *string
	if state.Classify != nil {
		text := state.Classify.FormattedText
		formatted = &text
	}
	keywords := state.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	matches := state.RegistryMatches
	if matches == nil {
		matches = []models.RegistryMatch{}
	}

	log.Info("query processed", map[string]interface{}{
		"keywords":        len(keywords),
		"registryMatches": len(matches),
		"classification":  valueOr(classification, ""),
		"durationMs":      durationMs,
	})

	return &models.OCAPQueryResponse{
		Query:                 query,
		ThreadID:              tid,
		WorkflowRunID:         runID,
		Keywords:              keywords,
		RegistryMatches:       matches,
		QuerySpecSummary:      state.QuerySpecSummary,
		ThreadMemorySummary:   summary,
		Classification:        classification,
		ClassifyFormattedText: formatted,
		Response:              &response,
		Status:                StatusProcessed,
		Message:               MessageSuccess,
	}
}

// ThreadWorkflows returns the stored states of a thread, newest first.
func (s *Service) ThreadWorkflows(ctx context.Context, threadID string, limit int) ([]*models.WorkflowRecord, error) {
	if s.deps.Memory == nil || !s.deps.Memory.Available() {
		return nil, errors.NewMemoryUnavailableError()
	}
	return s.deps.Memory.ThreadWorkflows(ctx, threadID, limit)
}

func (s *Service) submit(taskType string, payload interface{}) {
	if s.deps.Tasks == nil {
		return
	}
	s.deps.Tasks.Submit(taskType, payload)
}

// remember stores the run in thread memory. Failures only get logged.
func (s *Service) remember(ctx context.Context, log logger.Logger, state *ocap.State, at time.Time) {
	if s.deps.Memory == nil || !s.deps.Memory.Available() {
		return
	}
	rec, err := state.Record()
	if err != nil {
		log.Warn("failed to encode workflow state", map[string]interface{}{"error": err.Error()})
		return
	}
	rec.CreatedAt = at.UTC()
	if err := s.deps.Memory.Save(ctx, rec); err != nil {
		log.Warn("failed to store workflow state", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) publish(ctx context.Context, log logger.Logger, state *ocap.State, durationMs int64, at time.Time) {
	if s.deps.Notifier == nil {
		return
	}
	err := s.deps.Notifier.WorkflowCompleted(ctx, aws.WorkflowCompletedEvent{
		WorkflowRunID:  state.WorkflowRunID,
		ThreadID:       state.ThreadID,
		UserID:         state.UserID,
		Classification: string(state.Classification),
		DurationMs:     durationMs,
		CompletedAt:    at.UTC(),
	})
	if err != nil {
		log.Warn("failed to publish workflow event", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) record(ctx context.Context, classification, status string, d time.Duration) {
	label := classification
	if label == "" {
		label = "none"
	}
	metrics.WorkflowsTotal.WithLabelValues(status, label).Inc()
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordWorkflow(ctx, label, status, d)
	}
}

// errorText prefers the underlying cause of a StandardError over its
// generic message.
func errorText(err error) string {
	if stdErr, ok := errors.As(err); ok && stdErr.Details != "" {
		return stdErr.Details
	}
	return err.Error()
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func valueOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
