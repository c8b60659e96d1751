// Package schedule fires named triggers on fixed cron cadences by invoking
// internal job routes over HTTP.
//
// Delivery is at-least-once per tick: a tick missed during downtime is not
// backfilled. Job handlers must therefore query "what is due as of now"
// rather than reason about which tick fired, which makes missed ticks
// self-healing.
package schedule

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/observability"
)

// Trigger is a named schedule bound to an internal job route.
type Trigger struct {
	// Name identifies the trigger in logs and metrics.
	Name string

	// Spec is a standard 5-field cron expression.
	Spec string

	// Route is the internal job route invoked on each tick,
	// e.g. "/internal/jobs/check-reminders".
	Route string
}

// DefaultTriggers returns the standard trigger set: reminder checks every
// minute, the recurring-task sweep hourly, and cleanup daily.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{Name: "check-reminders", Spec: "* * * * *", Route: "/internal/jobs/check-reminders"},
		{Name: "sweep-recurring-tasks", Spec: "0 * * * *", Route: "/internal/jobs/sweep-recurring-tasks"},
		{Name: "cleanup", Spec: "0 3 * * *", Route: "/internal/jobs/cleanup"},
	}
}

// Scheduler drives triggers through a cron runner, calling the job routes
// through the resilient invoker so a wedged service does not pile up ticks.
type Scheduler struct {
	baseURL  string
	invoker  *invoke.Invoker
	triggers []Trigger
	logger   *slog.Logger
	metrics  *observability.Metrics

	cron *cron.Cron
}

// New creates a scheduler that posts trigger ticks to baseURL + trigger route.
func New(baseURL string, invoker *invoke.Invoker, triggers []Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		baseURL:  baseURL,
		invoker:  invoker,
		triggers: triggers,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// SetMetrics attaches metric instruments.
func (s *Scheduler) SetMetrics(m *observability.Metrics) { s.metrics = m }

// Start registers all triggers and begins the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, trig := range s.triggers {
		t := trig
		_, err := s.cron.AddFunc(t.Spec, func() {
			s.fire(ctx, t)
		})
		if err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.DebugContext(ctx, "scheduler started", "triggers", len(s.triggers))
	return nil
}

// Stop halts the cron runner and waits for in-flight ticks.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// fire posts one tick to the trigger's route. Tick failures are logged, not
// retried beyond the invoker's own policy: the next tick runs with current
// data anyway.
func (s *Scheduler) fire(ctx context.Context, t Trigger) {
	if s.metrics != nil {
		s.metrics.TriggerTicks.WithLabels(map[string]string{"trigger": t.Name}).Inc()
	}

	res, err := s.invoker.Do(ctx, "self", http.MethodPost, s.baseURL+t.Route, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "trigger tick failed",
			"trigger", t.Name, "error", err)
		return
	}
	if !res.OK() {
		s.logger.ErrorContext(ctx, "trigger tick rejected",
			"trigger", t.Name, "status", res.StatusCode)
		return
	}
	s.logger.DebugContext(ctx, "trigger fired", "trigger", t.Name)
}
