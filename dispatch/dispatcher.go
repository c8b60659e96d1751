package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/scope"
	"github.com/xraph/cadence/state"
)

// Config holds dispatcher configuration.
type Config struct {
	// DedupTTL is how long processed-event markers are kept. Must exceed the
	// transport's maximum redelivery window.
	DedupTTL time.Duration

	// ParkedTTL is how long permanently dropped envelopes are kept for
	// inspection before self-expiring.
	ParkedTTL time.Duration

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Dispatcher routes inbound messages to handlers with at-most-once side
// effects per event_id, backed by dedup markers in the shared state store.
type Dispatcher struct {
	store    state.Store
	registry *event.Registry
	config   Config
	logger   *slog.Logger

	bindings []Binding
	handlers map[string]HandlerFunc // keyed by topic
	byRoute  map[string]string     // route → topic
}

// NewDispatcher creates a dispatcher over the given state store and registry.
func NewDispatcher(store state.Store, registry *event.Registry, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	if cfg.ParkedTTL <= 0 {
		cfg.ParkedTTL = 7 * 24 * time.Hour
	}
	return &Dispatcher{
		store:    store,
		registry: registry,
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		byRoute:  make(map[string]string),
	}
}

// Handle binds a topic to a route and handler. Bindings are declared once at
// startup, before Attach or the HTTP surface serves traffic.
func (d *Dispatcher) Handle(topic, route string, h HandlerFunc) {
	d.bindings = append(d.bindings, Binding{Topic: topic, Route: route})
	d.handlers[topic] = h
	d.byRoute[route] = topic
}

// Bindings returns the static topic→route list for subscription discovery.
func (d *Dispatcher) Bindings() []Binding {
	out := make([]Binding, len(d.bindings))
	copy(out, d.bindings)
	return out
}

// TopicForRoute resolves the topic bound to an HTTP route.
func (d *Dispatcher) TopicForRoute(route string) (string, bool) {
	topic, ok := d.byRoute[route]
	return topic, ok
}

// Dispatch decodes raw into an envelope and runs the bound handler with
// idempotent-dispatch semantics:
//
//  1. Malformed envelope or unbound topic → Dropped (parked, never retried).
//  2. Dedup marker present → Processed without re-invoking the handler.
//  3. Handler error → Retry, marker not written.
//  4. Handler success → marker written with DedupTTL → Processed.
//
// A dedup-store read failure resolves to Retry: at-least-once beats silently
// losing an event.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, raw []byte) Outcome {
	env, err := event.Decode(raw)
	if err != nil {
		d.logger.ErrorContext(ctx, "dropping malformed envelope",
			"topic", topic, "error", err)
		d.park(ctx, topic, "malformed", raw)
		d.record(topic, Dropped)
		return Dropped
	}

	var span trace.Span
	if d.config.Tracer != nil {
		ctx, span = d.config.Tracer.StartDispatchSpan(ctx, topic, env.EventID.String())
	}
	outcome := d.dispatch(ctx, topic, env, raw)
	if span != nil {
		d.config.Tracer.EndDispatchSpan(span, outcome.String())
	}
	d.record(topic, outcome)
	return outcome
}

func (d *Dispatcher) dispatch(ctx context.Context, topic string, env *event.Envelope, raw []byte) Outcome {
	if env.Type != topic {
		d.logger.ErrorContext(ctx, "dropping envelope with mismatched topic",
			"topic", topic, "event_type", env.Type, "event_id", env.EventID)
		d.park(ctx, topic, "topic_mismatch", raw)
		return Dropped
	}

	handler, ok := d.handlers[topic]
	if !ok {
		d.logger.ErrorContext(ctx, "dropping envelope for unbound topic",
			"topic", topic, "event_id", env.EventID)
		d.park(ctx, topic, "unbound_topic", raw)
		return Dropped
	}

	dedupKey := state.DedupKey(topic, env.EventID.String())
	_, err := d.store.Get(ctx, dedupKey)
	switch {
	case err == nil:
		// Already processed: short-circuit without re-invoking business logic.
		if d.config.Metrics != nil {
			d.config.Metrics.DedupHitsTotal.WithLabels(map[string]string{"topic": topic}).Inc()
		}
		d.logger.DebugContext(ctx, "duplicate event short-circuited",
			"topic", topic, "event_id", env.EventID)
		return Processed
	case errors.Is(err, state.ErrNotFound):
		// First sight of this event.
	default:
		d.logger.ErrorContext(ctx, "dedup check failed, requesting redelivery",
			"topic", topic, "event_id", env.EventID, "error", err)
		return Retry
	}

	// Handlers and anything they publish inherit the event's provenance.
	ctx = scope.WithOwner(ctx, env.OwnerID)
	ctx = scope.WithCausation(ctx, env.EventID.String())

	if handlerErr := handler(ctx, env); handlerErr != nil {
		d.logger.ErrorContext(ctx, "handler failed, requesting redelivery",
			"topic", topic, "event_id", env.EventID, "error", handlerErr)
		return Retry
	}

	if _, err := d.store.Set(ctx, dedupKey, []byte(`1`), state.SetOptions{TTL: d.config.DedupTTL}); err != nil {
		// The side effect happened; a redelivery now would be deduplicated by
		// the handler's own idempotency keys, so do not request one.
		d.logger.ErrorContext(ctx, "dedup marker write failed",
			"topic", topic, "event_id", env.EventID, "error", err)
	}

	d.logger.DebugContext(ctx, "event processed",
		"topic", topic, "event_id", env.EventID, "subject_id", env.SubjectID)
	return Processed
}

// Attach subscribes every binding directly to a bus transport, for services
// consuming from the broker instead of the HTTP surface. Retry outcomes are
// surfaced to the transport as handler errors so it redelivers.
func (d *Dispatcher) Attach(ctx context.Context, transport bus.Transport) error {
	for _, b := range d.bindings {
		topic := b.Topic
		err := transport.Subscribe(ctx, topic, func(ctx context.Context, data []byte) error {
			if d.Dispatch(ctx, topic, data) == Retry {
				return fmt.Errorf("dispatch: %s: handler requested retry", topic)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("dispatch: attach %s: %w", topic, err)
		}
	}
	return nil
}

// park stores a permanently dropped message for later inspection. Best effort.
func (d *Dispatcher) park(ctx context.Context, topic, reason string, raw []byte) {
	key := state.ParkedKey(topic, fmt.Sprintf("%s-%d", reason, time.Now().UnixNano()))
	if env, err := event.Decode(raw); err == nil {
		key = state.ParkedKey(topic, env.EventID.String())
	}
	if _, err := d.store.Set(ctx, key, raw, state.SetOptions{TTL: d.config.ParkedTTL}); err != nil {
		d.logger.ErrorContext(ctx, "parking dropped envelope failed",
			"topic", topic, "error", err)
	}
}

func (d *Dispatcher) record(topic string, outcome Outcome) {
	if d.config.Metrics != nil {
		d.config.Metrics.RecordDispatch(topic, outcome.String())
	}
}
