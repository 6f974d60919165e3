// Package telemetry wires up optional OpenTelemetry tracing for the
// router daemon: one span per committed routing-table mutation, emitted
// through the stdout exporter when tracing is enabled and a no-op
// tracer otherwise.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"vecrouter/internal/config"
)

const tracerName = "vecrouter/routingtable"

// Tracer starts spans around routing-table mutations. The zero value
// (from a disabled configuration) is a safe no-op.
type Tracer struct {
	t trace.Tracer
}

// InitTracer configures the global OpenTelemetry tracer provider per
// cfg and returns a Tracer plus a shutdown func to call on exit. If
// tracing is disabled, it returns a no-op Tracer and a no-op shutdown.
func InitTracer(cfg config.TelemetryConfig, serviceName, self string) (Tracer, func(context.Context) error) {
	if !cfg.Tracing.Enabled {
		log.Println("tracing disabled")
		return Tracer{}, func(context.Context) error { return nil }
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("router.self", self),
		),
	)
	if err != nil {
		log.Fatalf("failed to create telemetry resource: %v", err)
	}

	var tp *sdktrace.TracerProvider
	switch cfg.Tracing.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			log.Fatalf("failed to initialize stdout exporter: %v", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
	default:
		panic(fmt.Sprintf("unsupported exporter: %s", cfg.Tracing.Exporter))
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return Tracer{t: tp.Tracer(tracerName)}, tp.Shutdown
}

// StartMutation starts a span for one table mutation (a presence, a
// route-vector, or an aging event), tagged with its outcome. Call End
// on the returned span once the diff has been computed.
func (tr Tracer) StartMutation(ctx context.Context, kind string, added, updated, removed int) (context.Context, trace.Span) {
	if tr.t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tr.t.Start(ctx, "routingtable.apply."+kind)
	span.SetAttributes(
		attribute.String("mutation.kind", kind),
		attribute.Int("mutation.added", added),
		attribute.Int("mutation.updated", updated),
		attribute.Int("mutation.removed", removed),
	)
	return ctx, span
}
