// Package tracing wires OpenTelemetry spans around client operations,
// SASL steps, and reconnect attempts, exporting via OTLP/HTTP.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("vbucket-client")

// Init configures the global TracerProvider to export to endpoint over
// OTLP/HTTP at the given sample rate, tagging spans with serviceName.
// Callers should defer the returned shutdown func.
func Init(ctx context.Context, endpoint, serviceName string, sampleRate float64) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("tracing: otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRate)),
	)
	otel.SetTracerProvider(provider)
	tracer = provider.Tracer("vbucket-client")
	return provider.Shutdown, nil
}

// StartOp opens a span for one user-issued operation (GET/STORE/
// ARITHMETIC/REMOVE/TAP), returning a context carrying it and a finish
// func to call with the operation's outcome.
func StartOp(ctx context.Context, name string, key []byte) (context.Context, func(error)) {
	spanCtx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("vbucket.key", string(key)),
	))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// StartSASLStep opens a child span for one SASL negotiation round.
func StartSASLStep(ctx context.Context, mechanism string) (context.Context, func(error)) {
	spanCtx, span := tracer.Start(ctx, "sasl.step", trace.WithAttributes(
		attribute.String("vbucket.sasl.mechanism", mechanism),
	))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// IDs returns the trace and span id of the span active in ctx, if any,
// for correlating a log line with the trace that produced it.
func IDs(ctx context.Context) (traceID, spanID string) {
	if ctx == nil {
		return "", ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}

// StartReconnect opens a span around one server reconnect attempt.
func StartReconnect(ctx context.Context, serverIndex int) (context.Context, func(error)) {
	spanCtx, span := tracer.Start(ctx, "server.reconnect", trace.WithAttributes(
		attribute.Int("vbucket.server_index", serverIndex),
	))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
