// internal/workers/ocap/classify/handler.go
package classify

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
	"ocap-agent/internal/workers/ocap/classify/queries"
)

const (
	TaskType = "ocap-classify"
	NodeName = "classify"
)

type Handler struct {
	config *Config
	client *elasticsearch.Client
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		client: client,
		errors: errors.NewErrorHandler(l),
		logger: l,
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
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err})
	}
}

// Execute looks up the knowledge matching the classification. Search
// failures are reported inside the result, never as an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}
	if input.Classification == "" {
		h.logger.Warn("no classification, skipping lookup", nil)
		return &Output{}, nil
	}

	res, err := h.lookup(ctx, input)
	if err != nil {
		h.logger.Error("knowledge lookup failed", map[string]interface{}{
			"classification": string(input.Classification),
			"error":          h.classifyError(ctx, input.Classification, err).Error(),
		})
		return &Output{Classify: &models.ClassifyResult{
			Classification: input.Classification,
			Results:        []map[string]interface{}{},
			Error:          err.Error(),
			FormattedText:  "Error occurred while querying Elasticsearch: " + err.Error(),
		}}, nil
	}

	index := ""
	if res.IndexUsed != nil {
		index = *res.IndexUsed
	}
	h.logger.Info("knowledge lookup completed", map[string]interface{}{
		"classification": string(res.Classification),
		"index":          index,
		"resultsCount":   res.ResultsCount,
	})
	return &Output{Classify: res}, nil
}

func (h *Handler) lookup(ctx context.Context, input *Input) (*models.ClassifyResult, error) {
	var (
		index  string
		method string
		body   map[string]interface{}
		format func([]map[string]interface{}) string
	)

	matches := input.RegistryMatches
	switch input.Classification {
	case models.ClassificationPrecise:
		defect := first(queries.ValuesOf(matches, models.NodeTypeDefect))
		style := first(queries.ValuesOf(matches, models.NodeTypeStyle))
		operations := queries.ValuesOf(matches, models.NodeTypeOperation)
		if defect == "" {
			h.logger.Warn("precise classification without a defect match", nil)
		}
		index, method = h.config.KnowledgeIndex, queries.MethodFullRows
		body = queries.PreciseQuery(defect, operations, style, h.config.SearchSize)
		format = queries.FormatPrecise

	case models.ClassificationErrorPrecise:
		errValue := first(queries.ValuesOf(matches, models.NodeTypeError))
		if errValue == "" {
			h.logger.Warn("error-precise classification without an error match", nil)
		}
		index, method = h.config.KnowledgeIndex, queries.MethodRowsByError
		body = queries.ErrorQuery(errValue, h.config.SearchSize)
		format = queries.FormatErrorPrecise

	case models.ClassificationNonPrecise:
		index, method = h.config.RelationshipIndex, queries.MethodNonPrecise
		body = queries.RelationshipQuery(matches, h.config.SearchSize)
		format = queries.FormatNonPrecise

	case models.ClassificationGeneric:
		method = queries.MethodGeneric
		return &models.ClassifyResult{
			Classification: input.Classification,
			QueryMethod:    &method,
			Results:        []map[string]interface{}{},
			FormattedText:  queries.GenericText,
		}, nil

	default:
		h.logger.Warn("unknown classification", map[string]interface{}{"classification": string(input.Classification)})
		return &models.ClassifyResult{
			Classification: input.Classification,
			Results:        []map[string]interface{}{},
		}, nil
	}

	rows := []map[string]interface{}{}
	if body != nil {
		if h.client == nil {
			return nil, fmt.Errorf("elasticsearch client is not configured")
		}
		found, err := queries.Search(ctx, h.client, index, body)
		if err != nil {
			return nil, err
		}
		rows = found
	} else {
		h.logger.Warn("no usable registry matches for relationship search", nil)
	}

	return &models.ClassifyResult{
		Classification: input.Classification,
		IndexUsed:      &index,
		QueryMethod:    &method,
		ResultsCount:   len(rows),
		Results:        rows,
		FormattedText:  format(rows),
	}, nil
}

func (h *Handler) classifyError(ctx context.Context, class models.Classification, err error) *errors.StandardError {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.NewSearchTimeoutError(string(class))
	case stderrors.Is(err, queries.ErrIndexMissing):
		return errors.NewIndexNotFoundError(err.Error())
	default:
		return errors.NewSearchQueryFailedError(string(class), err)
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
