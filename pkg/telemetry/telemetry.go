// Package telemetry provides OpenTelemetry distributed tracing for Recall.
// It instruments cache lookups, embedding calls, and semantic index
// operations, supports W3C Trace Context propagation, and exports to
// OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/inkwell-ai/recall"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	// 1.0 = sample everything, 0.1 = sample 10%.
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "recall",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes Recall-specific helpers.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		// Return a no-op provider
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return &Provider{
			tracer: trace.NewNoopTracerProvider().Tracer(tracerName),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(tracerName),
	}, nil
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the Recall tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// --- Span helpers for cache stages ---
//
// The helpers run against the globally registered provider that Init
// installs, so library code can create spans without threading a
// Provider through every constructor. Before Init they no-op.

var helperTracer = otel.Tracer(tracerName)

// StartLookup creates a span for a cache lookup.
func StartLookup(ctx context.Context, key string) (context.Context, trace.Span) {
	return helperTracer.Start(ctx, "recall.lookup",
		trace.WithAttributes(attribute.String("recall.cache.key", key)),
	)
}

// StartEmbedding creates a span for prompt embedding.
func StartEmbedding(ctx context.Context, model string) (context.Context, trace.Span) {
	return helperTracer.Start(ctx, "recall.embedding",
		trace.WithAttributes(attribute.String("recall.embedding.model", model)),
	)
}

// StartIndexSearch creates a span for a semantic index query.
func StartIndexSearch(ctx context.Context, backend string, threshold float64) (context.Context, trace.Span) {
	return helperTracer.Start(ctx, "recall.index.search",
		trace.WithAttributes(
			attribute.String("recall.index.backend", backend),
			attribute.Float64("recall.index.threshold", threshold),
		),
	)
}

// StartStoreOp creates a span for a response-store operation.
func StartStoreOp(ctx context.Context, op, backend string) (context.Context, trace.Span) {
	return helperTracer.Start(ctx, "recall.store."+op,
		trace.WithAttributes(attribute.String("recall.store.backend", backend)),
	)
}

// StartGeneration creates a span covering a real provider call made on a
// cache miss.
func StartGeneration(ctx context.Context, model string) (context.Context, trace.Span) {
	return helperTracer.Start(ctx, "recall.generation",
		trace.WithAttributes(attribute.String("recall.generation.model", model)),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// RecordLookupResult adds the outcome of a lookup to its span.
func RecordLookupResult(span trace.Span, result string, costSaved float64, latency time.Duration) {
	span.SetAttributes(
		attribute.String("recall.result", result),
		attribute.Float64("recall.cost_saved_dollars", costSaved),
		attribute.Int64("recall.latency_ms", latency.Milliseconds()),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
