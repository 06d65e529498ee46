// Package trace wires up OpenTelemetry once at process start and exposes the
// small span surface the rest of the tool uses. Instrumentation is applied at
// operation boundaries at composition time rather than by wrapping methods.
package trace

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var tracerName = "github.com/datalift/datalift"

// NewProvider builds and installs the global tracer provider. The exporter
// is "grpc" for OTLP over gRPC; anything else installs a no-op exporter.
func NewProvider(ctx context.Context, exporter, name, version string) (*sdktrace.TracerProvider, error) {
	res, err := newResource(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exp sdktrace.SpanExporter
	switch exporter {
	case "grpc":
		exp, err = otlptracegrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	default:
		exp = tracetest.NewNoopExporter()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	tracerName = name

	return tp, nil
}

// Start begins a span on the installed provider.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(tracerName).Start(ctx, name)
}

func newResource(ctx context.Context, name, version string) (*resource.Resource, error) {
	return resource.New(
		ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithHost(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(name),
			semconv.TelemetrySDKLanguageGo,
			semconv.TelemetrySDKVersionKey.String(version),
		),
	)
}

// NewError records an error on the span and returns it formatted.
func NewError(span trace.Span, msg string, args ...any) error {
	err := fmt.Errorf(msg, args...)

	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}

	return err
}
