package cadence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/dispatch"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/ratelimit"
	"github.com/xraph/cadence/recur"
	"github.com/xraph/cadence/reminder"
	"github.com/xraph/cadence/schedule"
	"github.com/xraph/cadence/state"
	"github.com/xraph/cadence/task"
)

// ErrUnknownJob is returned by RunJob for a job name without a registered
// function.
var ErrUnknownJob = errors.New("cadence: unknown job")

// Job names accepted by RunJob. They match the routes in
// schedule.DefaultTriggers.
const (
	JobCheckReminders = "check-reminders"
	JobSweepRecurring = "sweep-recurring-tasks"
	JobCleanup        = "cleanup"
)

// wireServices initializes the internal services after options have been applied.
func (c *Cadence) wireServices() {
	if c.registry == nil {
		c.registry = event.NewStandardRegistry()
	}

	c.publisher = bus.NewPublisher(c.transport, c.registry, c.logger)
	c.publisher.SetObservability(c.metrics, c.tracer)

	c.invoker = invoke.NewInvoker(invoke.Policy{
		Timeout:          c.config.InvokeTimeout,
		MaxRetries:       c.config.InvokeMaxRetries,
		Backoff:          c.config.InvokeBackoff,
		FailureThreshold: c.config.BreakerThreshold,
		Cooldown:         c.config.BreakerCooldown,
	}, c.config.SigningSecret, c.logger)
	c.invoker.SetObservability(c.metrics, c.tracer)

	c.dispatcher = dispatch.NewDispatcher(c.store, c.registry, dispatch.Config{
		DedupTTL: c.config.DedupTTL,
		Metrics:  c.metrics,
		Tracer:   c.tracer,
	}, c.logger)

	c.tasks = task.NewClient(c.config.TaskAPIBaseURL, c.invoker, c.store, c.config.TaskCacheTTL, c.logger)

	c.limiter = ratelimit.New(c.store)

	c.reminders = reminder.NewEngine(c.tasks, c.store, c.publisher, reminder.Config{
		DedupTTL: c.config.ReminderDedupTTL,
		Metrics:  c.metrics,
	}, c.logger)

	c.recurrences = recur.NewEngine(c.tasks, c.store, c.publisher, c.limiter, recur.Config{
		Metrics: c.metrics,
	}, c.logger)

	if len(c.triggers) == 0 {
		c.triggers = schedule.DefaultTriggers()
	}
	c.scheduler = schedule.New(c.config.ServiceBaseURL, c.invoker, c.triggers, c.logger)
	c.scheduler.SetMetrics(c.metrics)

	c.registerBindings()
}

// registerBindings wires the standard topic subscriptions: recurring-task
// materialization off task.completed and cache invalidation off the other
// lifecycle topics.
func (c *Cadence) registerBindings() {
	c.dispatcher.Handle(event.TopicTaskCompleted, "/events/task-completed", c.recurrences.HandleCompleted)
	c.dispatcher.Handle(event.TopicTaskUpdated, "/events/task-updated", c.tasks.HandleLifecycleEvent)
	c.dispatcher.Handle(event.TopicTaskDeleted, "/events/task-deleted", c.tasks.HandleLifecycleEvent)
}

// Start attaches the dispatcher to the transport and, when a service base
// URL is configured, starts the trigger scheduler.
func (c *Cadence) Start(ctx context.Context) error {
	if err := c.dispatcher.Attach(ctx, c.transport); err != nil {
		return fmt.Errorf("cadence: attach dispatcher: %w", err)
	}
	if c.config.ServiceBaseURL != "" {
		if err := c.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("cadence: start scheduler: %w", err)
		}
	}
	c.logger.InfoContext(ctx, "cadence started",
		"bindings", len(c.dispatcher.Bindings()),
		"triggers", len(c.triggers),
	)
	return nil
}

// Stop halts the scheduler and waits for in-flight trigger work, bounded by
// the shutdown timeout. The store and transport stay open; the caller owns
// their lifecycle.
func (c *Cadence) Stop(ctx context.Context) {
	if c.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ShutdownTimeout)
		defer cancel()
	}
	c.scheduler.Stop(ctx)
	c.logger.InfoContext(ctx, "cadence stopped")
}

// Publish validates and publishes an event envelope on its topic.
func (c *Cadence) Publish(ctx context.Context, topic string, env *event.Envelope) error {
	return c.publisher.Publish(ctx, topic, env)
}

// PublishLogged publishes best-effort: a failure is logged, never returned.
// This is the call for write paths where the primary record already exists.
func (c *Cadence) PublishLogged(ctx context.Context, topic string, env *event.Envelope) {
	c.publisher.PublishLogged(ctx, topic, env)
}

// DispatchRoute dispatches raw envelope bytes pushed to a binding route.
// The second return is false when no binding exists for the route.
func (c *Cadence) DispatchRoute(ctx context.Context, route string, raw []byte) (dispatch.Outcome, bool) {
	topic, ok := c.dispatcher.TopicForRoute(route)
	if !ok {
		return dispatch.Dropped, false
	}
	return c.dispatcher.Dispatch(ctx, topic, raw), true
}

// Bindings returns the registered topic subscriptions.
func (c *Cadence) Bindings() []dispatch.Binding {
	return c.dispatcher.Bindings()
}

// RunJob executes a named periodic job and returns how many items it
// affected. Jobs are idempotent: overlapping or repeated runs converge on
// the same markers the event-driven paths use.
func (c *Cadence) RunJob(ctx context.Context, name string) (int, error) {
	switch name {
	case JobCheckReminders:
		return c.reminders.ProcessDue(ctx, time.Now().UTC())
	case JobSweepRecurring:
		return c.recurrences.Sweep(ctx, time.Now().UTC())
	case JobCleanup:
		return c.cleanup(ctx)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
}

// cleanup collects expired state entries on backends without native TTL
// expiry. Backends like Redis expire keys themselves, so this is a no-op
// there.
func (c *Cadence) cleanup(ctx context.Context) (int, error) {
	sweeper, ok := c.store.(state.Sweeper)
	if !ok {
		c.logger.DebugContext(ctx, "cleanup skipped, backend expires entries natively")
		return 0, nil
	}
	dropped, err := sweeper.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("cadence: cleanup: %w", err)
	}
	c.logger.DebugContext(ctx, "cleanup complete", "dropped", dropped)
	return dropped, nil
}

// Ping checks state store connectivity.
func (c *Cadence) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Registry returns the topic registry.
func (c *Cadence) Registry() *event.Registry {
	return c.registry
}

// Tasks returns the resilient task API client.
func (c *Cadence) Tasks() *task.Client {
	return c.tasks
}

// Dispatcher returns the inbound event dispatcher, for registering extra
// bindings before Start.
func (c *Cadence) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Reminders returns the reminder engine.
func (c *Cadence) Reminders() *reminder.Engine {
	return c.reminders
}

// Recurrences returns the recurring-task engine.
func (c *Cadence) Recurrences() *recur.Engine {
	return c.recurrences
}

// Limiter returns the shared fixed-window rate limiter.
func (c *Cadence) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Store returns the underlying state store.
func (c *Cadence) Store() state.Store {
	return c.store
}
