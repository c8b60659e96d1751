package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/state"
)

// Config holds reminder engine configuration.
type Config struct {
	// DedupTTL is how long delivery markers are kept. Must comfortably
	// exceed the reminder-check cadence.
	DedupTTL time.Duration

	Metrics *observability.Metrics
}

// Engine turns due reminder records into reminder.due events, at least once
// and at most once per delivery marker.
type Engine struct {
	source    Source
	store     state.Store
	publisher *bus.Publisher
	config    Config
	logger    *slog.Logger
}

// NewEngine creates a reminder engine.
func NewEngine(source Source, store state.Store, publisher *bus.Publisher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 7 * 24 * time.Hour
	}
	return &Engine{
		source:    source,
		store:     store,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
}

// ProcessDue fires every reminder due as of now and returns how many were
// published. Reminders are independent: one failure does not stop the rest,
// and no cross-reminder ordering is provided.
//
// The delivery marker is written only after a successful publish, so a
// failed publish leaves the reminder eligible for the next tick rather than
// being silently dropped.
func (e *Engine) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	records, err := e.source.QueryDueReminders(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("reminder: query due: %w", err)
	}

	fired := 0
	for _, rec := range records {
		if rec == nil {
			// A null element in the collaborator's response decodes to a
			// nil record. Malformed data is dropped, not retried.
			e.logger.WarnContext(ctx, "nil reminder record dropped")
			continue
		}
		ok, err := e.fire(ctx, rec)
		if err != nil {
			e.logger.ErrorContext(ctx, "reminder not fired, will retry next tick",
				"task_id", rec.TaskID, "remind_at", rec.RemindAt, "error", err)
			continue
		}
		if ok {
			fired++
		}
	}

	if fired > 0 && e.config.Metrics != nil {
		e.config.Metrics.RemindersFired.Add(float64(fired))
	}
	e.logger.DebugContext(ctx, "due reminders processed",
		"due", len(records), "fired", fired)
	return fired, nil
}

// fire publishes one reminder unless its delivery marker already exists.
// Returns true when a reminder.due event was actually published.
func (e *Engine) fire(ctx context.Context, rec *Record) (bool, error) {
	key := rec.DedupKey()

	_, err := e.store.Get(ctx, key)
	switch {
	case err == nil:
		return false, nil // already delivered
	case errors.Is(err, state.ErrNotFound):
	default:
		return false, fmt.Errorf("check delivery marker: %w", err)
	}

	env, err := event.NewEnvelope(event.TopicReminderDue, rec.TaskID, rec.OwnerID, event.ReminderDuePayload{
		TaskID:   rec.TaskID,
		RemindAt: rec.RemindAt,
		Type:     rec.Type,
		Title:    rec.Title,
	})
	if err != nil {
		return false, err
	}

	if err := e.publisher.Publish(ctx, event.TopicReminderDue, env); err != nil {
		return false, err
	}

	// Marker only after the publish succeeded.
	if _, err := e.store.Set(ctx, key, []byte(`1`), state.SetOptions{TTL: e.config.DedupTTL}); err != nil {
		// The event is out; a duplicate next tick is acceptable under
		// at-least-once, consumers dedup on their side.
		e.logger.ErrorContext(ctx, "delivery marker write failed",
			"task_id", rec.TaskID, "error", err)
	}
	return true, nil
}
