// Package telemetry configures OpenTelemetry tracing for crmctl commands.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/desertthunder/crmctl/internal/shared"
)

// DefaultServiceName is reported when the config leaves service_name empty.
const DefaultServiceName = "crmctl"

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Enabled reports whether cfg asks for trace export.
func Enabled(cfg shared.TelemetryConfig) bool {
	return cfg.Enabled && cfg.Endpoint != ""
}

// Setup registers a global tracer provider exporting over OTLP/HTTP.
//
// When export is disabled it returns a no-op shutdown and leaves the global provider alone,
// so spans started by the bootstrap pipeline are dropped at no cost.
func Setup(ctx context.Context, cfg shared.TelemetryConfig) (Shutdown, error) {
	if !Enabled(cfg) {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return noop, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
