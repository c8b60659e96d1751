package recur

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/ratelimit"
	"github.com/xraph/cadence/state"
	"github.com/xraph/cadence/task"
)

// Creation rate limit per owner, guarding against runaway instance creation
// if a sweep and a burst of completion events coincide.
const (
	createAction = "bulk_create"
	createLimit  = 60
	createWindow = time.Minute
)

// Config holds recurring-task engine configuration.
type Config struct {
	// DedupTTL is how long occurrence-creation markers are kept.
	DedupTTL time.Duration

	Metrics *observability.Metrics
}

// Tasks is the slice of the task API the engine writes through.
type Tasks interface {
	ApplyUpdate(ctx context.Context, taskID id.ID, fields task.Fields) (*task.Snapshot, error)
	ListRecurringDue(ctx context.Context, asOf time.Time) ([]*task.Snapshot, error)
}

// Engine creates the next occurrence of a recurring task, driven by
// task.completed events with an hourly sweep as the catch-up path. Both
// paths converge on the same occurrence dedup marker, so they can race
// safely.
type Engine struct {
	tasks     Tasks
	store     state.Store
	publisher *bus.Publisher
	limiter   *ratelimit.Limiter
	config    Config
	logger    *slog.Logger

	// now is swappable in tests to pin occurrence computation.
	now func() time.Time
}

// NewEngine creates a recurring-task engine.
func NewEngine(tasks Tasks, store state.Store, publisher *bus.Publisher, limiter *ratelimit.Limiter, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 30 * 24 * time.Hour
	}
	return &Engine{
		tasks:     tasks,
		store:     store,
		publisher: publisher,
		limiter:   limiter,
		config:    cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// HandleCompleted processes a task.completed envelope. Non-recurring
// completions are a no-op. Wired as the dispatch handler for
// task.completed.
func (e *Engine) HandleCompleted(ctx context.Context, env *event.Envelope) error {
	payload, err := env.TaskData()
	if err != nil {
		return err
	}
	if payload.Recurrence == nil {
		return nil
	}

	_, err = e.materialize(ctx, env.SubjectID, env.OwnerID, payload.Title, *payload.Recurrence, payload.Reminders)
	return err
}

// Sweep is the hourly catch-up: it materializes the next occurrence for any
// recurring task whose due date passed without the event path having done
// so. Returns how many occurrences were created.
func (e *Engine) Sweep(ctx context.Context, now time.Time) (int, error) {
	snaps, err := e.tasks.ListRecurringDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("recur: list due: %w", err)
	}

	created := 0
	for _, snap := range snaps {
		if snap.Recurrence == nil {
			continue
		}
		ok, err := e.materialize(ctx, snap.ID, snap.OwnerID, snap.Title, *snap.Recurrence, snap.Reminders)
		if err != nil {
			e.logger.ErrorContext(ctx, "sweep: occurrence not created",
				"task_id", snap.ID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	e.logger.DebugContext(ctx, "recurring sweep complete",
		"candidates", len(snaps), "created", created)
	return created, nil
}

// materialize creates the next occurrence of a recurring task, exactly once
// per (task, next due date). Returns true if an instance was created by this
// call.
func (e *Engine) materialize(ctx context.Context, originalID id.ID, ownerID, title string, rule event.RecurrenceRule, reminders []event.ReminderSpec) (bool, error) {
	now := e.now()
	nextDue, err := NextAfter(rule, now)
	if err != nil {
		return false, err
	}

	// The event path and the sweep both land here; the marker decides who
	// creates the instance.
	dedupKey := state.RecurrenceDedupKey(originalID.String(), nextDue)
	_, err = e.store.Get(ctx, dedupKey)
	switch {
	case err == nil:
		return false, nil // occurrence already materialized
	case errors.Is(err, state.ErrNotFound):
	default:
		return false, fmt.Errorf("recur: check occurrence marker: %w", err)
	}

	if e.limiter != nil {
		allowed, limitErr := e.limiter.Allow(ctx, createAction, ownerID, createLimit, createWindow)
		if limitErr != nil {
			return false, limitErr
		}
		if !allowed {
			if e.config.Metrics != nil {
				e.config.Metrics.RateLimitDenied.WithLabels(map[string]string{"action": createAction}).Inc()
			}
			return false, fmt.Errorf("%w: %s for owner %s", ratelimit.ErrRateLimited, createAction, ownerID)
		}
	}

	// Claim the occurrence before the write so a concurrent instance that
	// loses this race skips instead of double-creating.
	if _, err := e.store.Set(ctx, dedupKey, []byte(`1`), state.SetOptions{
		TTL:          e.config.DedupTTL,
		ExpectedETag: state.ETagAbsent,
	}); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return false, nil // another instance claimed it
		}
		return false, fmt.Errorf("recur: claim occurrence: %w", err)
	}

	newID := id.NewTaskID()
	nextRule := event.RecurrenceRule{
		Frequency:     rule.Frequency,
		Interval:      rule.Interval,
		AnchorDueDate: nextDue,
	}

	snap, err := e.tasks.ApplyUpdate(ctx, newID, task.Fields{
		"owner_id":   ownerID,
		"title":      title,
		"due_date":   nextDue,
		"recurrence": nextRule,
		"reminders":  remindersFor(reminders),
		"completed":  false,
	})
	if err != nil {
		// Release the claim so the sweep can try again.
		if delErr := e.store.Delete(ctx, dedupKey); delErr != nil {
			e.logger.ErrorContext(ctx, "occurrence claim not released",
				"task_id", originalID, "error", delErr)
		}
		return false, fmt.Errorf("recur: create instance: %w", err)
	}

	// Best-effort eventing: the instance exists regardless of publish
	// success, and the envelope keeps its EventID across a future republish.
	env, err := event.NewEnvelope(event.TopicTaskCreated, snap.ID, ownerID, event.TaskPayload{
		Title:      snap.Title,
		DueDate:    &nextDue,
		Recurrence: &nextRule,
		Reminders:  reminders,
	})
	if err != nil {
		return true, err
	}
	e.publisher.PublishLogged(ctx, event.TopicTaskCreated, env)

	if e.config.Metrics != nil {
		e.config.Metrics.RecurrencesSpun.Inc()
	}
	e.logger.DebugContext(ctx, "recurrence materialized",
		"original_task_id", originalID, "new_task_id", snap.ID, "due", nextDue)
	return true, nil
}

// remindersFor re-expresses the reminder specs for the update payload.
func remindersFor(specs []event.ReminderSpec) []event.ReminderSpec {
	if len(specs) == 0 {
		return nil
	}
	out := make([]event.ReminderSpec, len(specs))
	copy(out, specs)
	return out
}
