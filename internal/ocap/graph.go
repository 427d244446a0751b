package ocap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/common/metrics"
	analyzequery "ocap-agent/internal/workers/ocap/analyze-query"
	"ocap-agent/internal/workers/ocap/classify"
	extractkeywords "ocap-agent/internal/workers/ocap/extract-keywords"
	"ocap-agent/internal/workers/ocap/summarize"
	threadmemory "ocap-agent/internal/workers/ocap/thread-memory"
)

type Extractor interface {
	Execute(ctx context.Context, input *extractkeywords.Input) (*extractkeywords.Output, error)
}

type MemorySummarizer interface {
	Execute(ctx context.Context, input *threadmemory.Input) (*threadmemory.Output, error)
}

type Analyzer interface {
	Execute(ctx context.Context, input *analyzequery.Input) (*analyzequery.Output, error)
}

type Classifier interface {
	Execute(ctx context.Context, input *classify.Input) (*classify.Output, error)
}

type Summarizer interface {
	Execute(ctx context.Context, input *summarize.Input) (*summarize.Output, error)
}

// Nodes are the steps of the graph, usually the job worker handlers.
type Nodes struct {
	Extract   Extractor
	Memory    MemorySummarizer
	Analyze   Analyzer
	Classify  Classifier
	Summarize Summarizer
}

type Graph struct {
	nodes  Nodes
	tracer trace.Tracer
	logger logger.Logger
}

type Option func(*Graph)

func WithTracer(t trace.Tracer) Option {
	return func(g *Graph) { g.tracer = t }
}

func NewGraph(nodes Nodes, log logger.Logger, opts ...Option) *Graph {
	g := &Graph{
		nodes:  nodes,
		tracer: otel.Tracer("ocap-agent/graph"),
		logger: log.WithFields(map[string]interface{}{"component": "ocap-graph"}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes the graph for one query. Nodes degrade on their own; an
// error here means a node panicked, rejected its input or the context ended.
func (g *Graph) Run(ctx context.Context, in Input) (*State, error) {
	state := &State{Input: in}
	log := g.logger.WithFields(map[string]interface{}{
		"workflowRunId": in.WorkflowRunID,
		"threadId":      in.ThreadID,
	})

	var (
		wg         sync.WaitGroup
		extractErr error
		memoryErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		extractErr = g.runNode(ctx, state, extractkeywords.NodeName, func(ctx context.Context) (bool, error) {
			out, err := g.nodes.Extract.Execute(ctx, &extractkeywords.Input{Query: in.Query})
			if err != nil {
				return false, err
			}
			state.Keywords = out.Keywords
			state.RegistryMatches = out.RegistryMatches
			state.QuerySpecSummary = out.QuerySpecSummary
			return out.Fallback, nil
		})
	}()
	go func() {
		defer wg.Done()
		memoryErr = g.runNode(ctx, state, threadmemory.NodeName, func(ctx context.Context) (bool, error) {
			threadID := in.ThreadID
			out, err := g.nodes.Memory.Execute(ctx, &threadmemory.Input{
				Query:    in.Query,
				ThreadID: &threadID,
				UserID:   in.UserID,
			})
			if err != nil {
				return false, err
			}
			state.Memory = *out
			return out.SummaryFallback || out.ThreadMemoryError != "", nil
		})
	}()
	wg.Wait()

	if extractErr != nil {
		return state, g.fail(in, extractErr)
	}
	if memoryErr != nil {
		return state, g.fail(in, memoryErr)
	}

	steps := []struct {
		name string
		fn   func(ctx context.Context) (bool, error)
	}{
		{analyzequery.NodeName, func(ctx context.Context) (bool, error) {
			out, err := g.nodes.Analyze.Execute(ctx, &analyzequery.Input{
				Query:                     in.Query,
				QuerySpecSummary:          state.QuerySpecSummary,
				RegistryMatches:           state.RegistryMatches,
				ThreadMemorySummary:       state.Memory.ThreadMemorySummary,
				HistoricalRegistryMatches: state.Memory.HistoricalRegistryMatches,
			})
			if err != nil {
				return false, err
			}
			state.Classification = out.Classification
			analysis := out.Analysis
			state.Analysis = &analysis
			return out.Fallback, nil
		}},
		{classify.NodeName, func(ctx context.Context) (bool, error) {
			out, err := g.nodes.Classify.Execute(ctx, &classify.Input{
				Query:           in.Query,
				Classification:  state.Classification,
				RegistryMatches: state.RegistryMatches,
			})
			if err != nil {
				return false, err
			}
			state.Classify = out.Classify
			return out.Classify != nil && out.Classify.Error != "", nil
		}},
		{summarize.NodeName, func(ctx context.Context) (bool, error) {
			input := &summarize.Input{
				Query:               in.Query,
				Classification:      state.Classification,
				QuerySpecSummary:    state.QuerySpecSummary,
				RegistryMatches:     state.RegistryMatches,
				ThreadMemorySummary: state.Memory.ThreadMemorySummary,
			}
			if state.Analysis != nil {
				input.AnalysisReasoning = state.Analysis.Reasoning
				input.MergeApplied = state.Analysis.MergeApplied
			}
			if state.Classify != nil {
				input.ClassifyFormattedText = state.Classify.FormattedText
			}
			out, err := g.nodes.Summarize.Execute(ctx, input)
			if err != nil {
				return false, err
			}
			state.Response = out.Response
			state.Summarize = out.Summarize
			return out.Fallback, nil
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return state, g.fail(in, err)
		}
		if err := g.runNode(ctx, state, step.name, step.fn); err != nil {
			return state, g.fail(in, err)
		}
	}

	log.Info("graph completed", map[string]interface{}{
		"classification":  string(state.Classification),
		"keywords":        len(state.Keywords),
		"registryMatches": len(state.RegistryMatches),
	})
	return state, nil
}

// runNode wraps one step in a span and records its duration. fn reports
// whether the node fell back to its degraded output.
func (g *Graph) runNode(ctx context.Context, state *State, name string, fn func(context.Context) (bool, error)) (err error) {
	ctx, span := g.tracer.Start(ctx, "node."+name, trace.WithAttributes(g.spanAttributes(state, name)...))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", name, r)
		}
		metrics.NodeDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.Bool("error", true))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	fallback, err := fn(ctx)
	if err != nil {
		return err
	}
	if fallback {
		metrics.NodeFallbacks.WithLabelValues(name).Inc()
		span.SetAttributes(attribute.Bool("node.fallback", true))
	}
	switch name {
	case extractkeywords.NodeName:
		span.SetAttributes(attribute.Int("result.keywords_count", len(state.Keywords)))
	case analyzequery.NodeName:
		span.SetAttributes(attribute.String("result.classification", string(state.Classification)))
	}
	return nil
}

func (g *Graph) spanAttributes(state *State, name string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("node.name", name),
		attribute.String("workflow.run_id", state.WorkflowRunID),
		attribute.String("thread.id", state.ThreadID),
	}
	if state.UserID != nil {
		attrs = append(attrs, attribute.Int64("user.id", *state.UserID))
	}
	if state.Query != "" {
		q := []rune(state.Query)
		if len(q) > 100 {
			q = q[:100]
		}
		attrs = append(attrs, attribute.String("query.text", string(q)))
	}
	// Extract and memory run concurrently, so only read the classification
	// once the parallel stage is over.
	if name != extractkeywords.NodeName && name != threadmemory.NodeName && state.Classification != "" {
		attrs = append(attrs, attribute.String("classification", string(state.Classification)))
	}
	return attrs
}

func (g *Graph) fail(in Input, err error) error {
	g.logger.Error("graph failed", map[string]interface{}{
		"workflowRunId": in.WorkflowRunID,
		"error":         err.Error(),
	})
	return errors.NewWorkflowFailedError(in.WorkflowRunID, err)
}
