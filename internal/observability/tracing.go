// Package observability wires the opt-in OpenTelemetry trace pipeline.
// Metrics and structured logging are always on and configured elsewhere;
// tracing is off unless explicitly enabled because the stdout exporter
// is verbose and meant for local debugging.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracing holds the configured tracer and its shutdown hook.
type Tracing struct {
	Tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup builds the trace pipeline. When enabled is false it returns a
// noop tracer with a no-op shutdown, so callers wire it unconditionally.
func Setup(enabled bool, serviceName, version string, logger *slog.Logger) (*Tracing, error) {
	if !enabled {
		return &Tracing{
			Tracer:   noop.NewTracerProvider().Tracer(serviceName),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("trace export enabled", "exporter", "stdout")

	return &Tracing{
		Tracer:   provider.Tracer(serviceName),
		shutdown: provider.Shutdown,
	}, nil
}

// Shutdown flushes pending spans. Safe to call on a disabled pipeline.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
