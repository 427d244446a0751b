package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability exposes OTel instruments through the default prometheus
// registry, so they appear on the same /metrics endpoint as promauto metrics.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	workflowCounter  otelmetric.Int64Counter
	workflowDuration otelmetric.Float64Histogram
	jobCounter       otelmetric.Int64Counter
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	workflowCounter, _ := meter.Int64Counter(
		"ocap.workflows.processed",
		otelmetric.WithDescription("Number of OCAP workflows processed"),
	)

	workflowDuration, _ := meter.Float64Histogram(
		"ocap.workflows.duration",
		otelmetric.WithDescription("OCAP workflow duration"),
		otelmetric.WithUnit("ms"),
	)

	jobCounter, _ := meter.Int64Counter(
		"ocap.jobs.processed",
		otelmetric.WithDescription("Number of BPMN jobs processed"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		workflowCounter:  workflowCounter,
		workflowDuration: workflowDuration,
		jobCounter:       jobCounter,
	}, nil
}

// RecordWorkflow counts a finished workflow and its duration. Safe on a nil receiver.
func (o *Observability) RecordWorkflow(ctx context.Context, classification, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.String("classification", classification),
	)
	if o.workflowCounter != nil {
		o.workflowCounter.Add(ctx, 1, attrs)
	}
	if o.workflowDuration != nil {
		o.workflowDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
