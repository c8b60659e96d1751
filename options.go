package cadence

import (
	"log/slog"
	"time"

	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/dispatch"
	"github.com/xraph/cadence/event"
	"github.com/xraph/cadence/invoke"
	"github.com/xraph/cadence/observability"
	"github.com/xraph/cadence/ratelimit"
	"github.com/xraph/cadence/recur"
	"github.com/xraph/cadence/reminder"
	"github.com/xraph/cadence/schedule"
	"github.com/xraph/cadence/state"
	"github.com/xraph/cadence/task"
)

// Cadence is the root task-lifecycle event engine.
type Cadence struct {
	config    Config
	store     state.Store
	transport bus.Transport
	registry  *event.Registry
	triggers  []schedule.Trigger
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer

	publisher   *bus.Publisher
	dispatcher  *dispatch.Dispatcher
	invoker     *invoke.Invoker
	tasks       *task.Client
	limiter     *ratelimit.Limiter
	reminders   *reminder.Engine
	recurrences *recur.Engine
	scheduler   *schedule.Scheduler
}

// Option configures a Cadence instance.
type Option func(*Cadence) error

// New creates a new Cadence with the given options.
func New(opts ...Option) (*Cadence, error) {
	c := &Cadence{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStateStore
	}
	if c.transport == nil {
		return nil, ErrNoTransport
	}
	c.wireServices()
	return c, nil
}

// WithStateStore sets the shared state backend for the Cadence instance.
func WithStateStore(s state.Store) Option {
	return func(c *Cadence) error {
		c.store = s
		return nil
	}
}

// WithTransport sets the pub/sub transport for the Cadence instance.
func WithTransport(t bus.Transport) Option {
	return func(c *Cadence) error {
		c.transport = t
		return nil
	}
}

// WithRegistry replaces the standard topic registry, for deployments that
// register additional topics or custom schemas.
func WithRegistry(r *event.Registry) Option {
	return func(c *Cadence) error {
		c.registry = r
		return nil
	}
}

// WithLogger sets the structured logger for the Cadence instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cadence) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics attaches metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cadence) error {
		c.metrics = m
		return nil
	}
}

// WithTracer attaches tracing instruments.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Cadence) error {
		c.tracer = t
		return nil
	}
}

// WithTaskAPI sets the base URL of the task API collaborator.
func WithTaskAPI(baseURL string) Option {
	return func(c *Cadence) error {
		c.config.TaskAPIBaseURL = baseURL
		return nil
	}
}

// WithServiceBaseURL sets this service's own base URL. The scheduler posts
// trigger ticks to it; without it the scheduler stays off and jobs run only
// via RunJob.
func WithServiceBaseURL(baseURL string) Option {
	return func(c *Cadence) error {
		c.config.ServiceBaseURL = baseURL
		return nil
	}
}

// WithSigningSecret sets the HMAC secret for internal job requests.
func WithSigningSecret(secret string) Option {
	return func(c *Cadence) error {
		c.config.SigningSecret = secret
		return nil
	}
}

// WithDedupTTL sets how long consumer-side dedup markers are kept.
func WithDedupTTL(d time.Duration) Option {
	return func(c *Cadence) error {
		c.config.DedupTTL = d
		return nil
	}
}

// WithReminderDedupTTL sets how long reminder delivery markers are kept.
func WithReminderDedupTTL(d time.Duration) Option {
	return func(c *Cadence) error {
		c.config.ReminderDedupTTL = d
		return nil
	}
}

// WithTaskCacheTTL sets the TTL for cache-aside task snapshots.
func WithTaskCacheTTL(d time.Duration) Option {
	return func(c *Cadence) error {
		c.config.TaskCacheTTL = d
		return nil
	}
}

// WithInvokePolicy sets the resilience policy for outbound service calls.
func WithInvokePolicy(p invoke.Policy) Option {
	return func(c *Cadence) error {
		c.config.InvokeTimeout = p.Timeout
		c.config.InvokeMaxRetries = p.MaxRetries
		c.config.InvokeBackoff = p.Backoff
		c.config.BreakerThreshold = p.FailureThreshold
		c.config.BreakerCooldown = p.Cooldown
		return nil
	}
}

// WithTriggers replaces the default trigger set.
func WithTriggers(triggers []schedule.Trigger) Option {
	return func(c *Cadence) error {
		c.triggers = triggers
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight work on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Cadence) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}
