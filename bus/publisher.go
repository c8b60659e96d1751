package bus

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/scope"
)

// Publisher wraps outbound envelopes and hands them to the transport.
//
// Publishing is best-effort with respect to the caller's primary write: a
// failed publish is surfaced as an error result, never a panic, and callers
// on the write path are expected to log and continue (the record of intent
// still exists in the source of truth).
type Publisher struct {
	transport Transport
	registry  *event.Registry
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// NewPublisher creates a publisher over the given transport and topic registry.
func NewPublisher(transport Transport, registry *event.Registry, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		transport: transport,
		registry:  registry,
		logger:    logger,
	}
}

// SetObservability attaches metrics and tracing instruments.
func (p *Publisher) SetObservability(m *observability.Metrics, t *observability.Tracer) {
	p.metrics = m
	p.tracer = t
}

// Publish validates and hands the envelope to the transport.
//
// The envelope's EventID must be caller-supplied and stable across retries:
// Publish never mints or replaces it, so redelivered events dedup correctly
// on the consumer side.
func (p *Publisher) Publish(ctx context.Context, topic string, env *event.Envelope) error {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.StartPublishSpan(ctx, topic, env.EventID.String())
		defer span.End()
	}

	// Envelopes published from inside a handler inherit the owner the
	// dispatcher put in scope.
	if env.OwnerID == "" {
		env.OwnerID = scope.Owner(ctx)
	}

	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", event.ErrMalformedEnvelope, err)
	}
	if env.Type != topic {
		return fmt.Errorf("%w: envelope type %q does not match topic %q",
			event.ErrMalformedEnvelope, env.Type, topic)
	}

	if _, ok := p.registry.Lookup(topic); !ok {
		return fmt.Errorf("%w: %s", event.ErrTopicNotFound, topic)
	}
	if p.registry.IsDeprecated(topic) {
		return fmt.Errorf("%w: %s", event.ErrTopicDeprecated, topic)
	}
	if len(env.Payload) > 0 {
		if err := p.registry.ValidatePayload(topic, env.Payload); err != nil {
			return fmt.Errorf("%w: %v", event.ErrPayloadValidationFailed, err)
		}
	}

	raw, err := env.Encode()
	if err != nil {
		return err
	}

	if err := p.transport.Publish(ctx, topic, env.PartitionKey(), raw); err != nil {
		if p.metrics != nil {
			p.metrics.PublishTotal.WithLabels(map[string]string{"topic": topic, "status": "error"}).Inc()
		}
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}

	if p.metrics != nil {
		p.metrics.PublishTotal.WithLabels(map[string]string{"topic": topic, "status": "ok"}).Inc()
	}
	p.logger.DebugContext(ctx, "event published",
		"topic", topic,
		"event_id", env.EventID,
		"subject_id", env.SubjectID,
		"caused_by", scope.Causation(ctx),
	)
	return nil
}

// PublishLogged publishes and, on failure, logs and swallows the error.
// For callers whose primary operation must not fail because eventing did.
func (p *Publisher) PublishLogged(ctx context.Context, topic string, env *event.Envelope) {
	if err := p.Publish(ctx, topic, env); err != nil {
		p.logger.ErrorContext(ctx, "event publish failed, continuing",
			"topic", topic,
			"event_id", env.EventID,
			"error", err,
		)
	}
}
