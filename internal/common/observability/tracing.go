package observability

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ocap-agent/internal/common/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracing owns the process tracer provider. When tracing is disabled it hands
// out a no-op tracer so callers never branch on configuration.
type Tracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

// NewTracing installs a global tracer provider for the configured exporter.
func NewTracing(ctx context.Context, cfg config.TracingConfig, version string) (*Tracing, error) {
	if !cfg.Enabled {
		return &Tracing{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracing{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		enabled:  true,
	}, nil
}

func newSpanExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "jaeger":
		if cfg.Endpoint != "" {
			exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
			if err != nil {
				return nil, fmt.Errorf("tracing: start jaeger collector exporter: %w", err)
			}
			return exp, nil
		}
		exp, err := jaeger.New(jaeger.WithAgentEndpoint(
			jaeger.WithAgentHost(cfg.JaegerAgentHost),
			jaeger.WithAgentPort(strconv.Itoa(cfg.JaegerAgentPort)),
		))
		if err != nil {
			return nil, fmt.Errorf("tracing: start jaeger agent exporter: %w", err)
		}
		return exp, nil

	case "otlp-http":
		endpoint, path, insecure := splitEndpoint(cfg.Endpoint, cfg.Insecure)
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithTimeout(10 * time.Second),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if path != "" && path != "/" {
			opts = append(opts, otlptracehttp.WithURLPath(path))
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: start trace exporter (http): %w", err)
		}
		return exp, nil

	default:
		endpoint, _, insecure := splitEndpoint(cfg.Endpoint, cfg.Insecure)
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithTimeout(10 * time.Second),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("tracing: start trace exporter (grpc): %w", err)
		}
		return exp, nil
	}
}

// splitEndpoint accepts either host:port or a URL such as
// http://localhost:4317. A plain http scheme forces an insecure connection.
func splitEndpoint(raw string, insecure bool) (hostPort, path string, plain bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "localhost:4317", "", true
	}
	if !strings.Contains(raw, "://") {
		return raw, "", insecure
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw, "", insecure
	}
	return u.Host, u.Path, insecure || u.Scheme == "http"
}

func (t *Tracing) Tracer() trace.Tracer {
	return t.tracer
}

func (t *Tracing) Enabled() bool {
	return t.enabled
}

// Shutdown flushes buffered spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the current span's trace id, or "" outside a sampled span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
