// Package otelinit wires up OpenTelemetry tracing and metrics for the
// engine, exporting via OTLP gRPC when an endpoint is configured and
// falling back to no-op providers otherwise.
package otelinit

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the tracer/meter used across the engine and a Shutdown
// hook that flushes and closes exporters.
type Providers struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

const serviceName = "taskengine"

// Tracer returns the process-wide tracer. It is safe to call before
// InitTracer: it resolves against whatever TracerProvider is globally
// registered at call time (the no-op provider until InitTracer runs),
// so packages that emit spans (internal/chain, internal/task) do not need
// a Providers handle threaded through their constructors.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}

// InitTracer configures a TracerProvider. If OTEL_EXPORTER_OTLP_ENDPOINT is
// unset, it returns a provider wired to the global no-op tracer so callers
// can unconditionally create spans without nil checks.
func InitTracer(ctx context.Context) (*Providers, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return &Providers{
			Tracer:   otel.Tracer(serviceName),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Providers{
		Tracer:   tp.Tracer(serviceName),
		Shutdown: tp.Shutdown,
	}, nil
}
