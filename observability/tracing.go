package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/cadence"

// Tracer provides OpenTelemetry tracing for Cadence.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new Cadence tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartPublishSpan starts a span for handing an envelope to the transport.
func (t *Tracer) StartPublishSpan(ctx context.Context, topic, eventID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "cadence.publish",
		trace.WithAttributes(
			attribute.String("cadence.topic", topic),
			attribute.String("cadence.event_id", eventID),
		),
	)
}

// StartDispatchSpan starts a span for one inbound envelope dispatch.
func (t *Tracer) StartDispatchSpan(ctx context.Context, topic, eventID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "cadence.dispatch",
		trace.WithAttributes(
			attribute.String("cadence.topic", topic),
			attribute.String("cadence.event_id", eventID),
		),
	)
}

// EndDispatchSpan ends a dispatch span with its outcome.
func (t *Tracer) EndDispatchSpan(span trace.Span, outcome string) {
	span.SetAttributes(attribute.String("cadence.outcome", outcome))
	span.End()
}

// StartInvokeSpan starts a span for a resilient service call attempt.
func (t *Tracer) StartInvokeSpan(ctx context.Context, target, method, url string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "cadence.invoke",
		trace.WithAttributes(
			attribute.String("cadence.target", target),
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
}

// EndInvokeSpan ends an invoke span with the final result.
func (t *Tracer) EndInvokeSpan(span trace.Span, statusCode, attempts int, err string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int("cadence.attempts", attempts),
	)
	if err != "" {
		span.SetAttributes(attribute.String("cadence.error", err))
	}
	span.End()
}
