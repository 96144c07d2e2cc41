// Package telemetry wires OpenTelemetry tracing across agent
// invocations and tool calls, shipped as a baseline ambient concern
// the way any production Go service carries its own tracing package
// regardless of which features are in scope for a given release.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the tracer provider.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(ctx context.Context) error

// noopShutdown satisfies Shutdown when telemetry is disabled.
func noopShutdown(context.Context) error { return nil }

// Setup installs a global tracer provider exporting spans over OTLP
// HTTP when cfg.Enabled, or a no-op provider otherwise. The returned
// Shutdown must be called on process exit to flush pending spans.
func Setup(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return noopShutdown, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "parrotgate"
	}

	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building OTLP exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(shutdownCtx context.Context) error {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry: shutdown failed", "error", err)
			return err
		}
		return nil
	}, nil
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartAgentSpan starts a span around one agent.Invoke call.
func StartAgentSpan(ctx context.Context, threadID string) (context.Context, trace.Span) {
	return Tracer("parrotgate/agent").Start(ctx, "agent.invoke",
		trace.WithAttributes(attribute.String("thread_id", threadID)))
}

// StartToolSpan starts a span around one tool execution.
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return Tracer("parrotgate/tools").Start(ctx, "tool.execute",
		trace.WithAttributes(attribute.String("tool.name", toolName)))
}
