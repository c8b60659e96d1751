package cadence

import "time"

// Config holds the configuration for a Cadence instance.
type Config struct {
	// DedupTTL is how long consumer-side dedup markers are kept. Must exceed
	// the maximum redelivery window of the transport.
	DedupTTL time.Duration

	// ReminderDedupTTL is how long reminder delivery markers are kept.
	ReminderDedupTTL time.Duration

	// TaskCacheTTL is the TTL for cache-aside task snapshots.
	TaskCacheTTL time.Duration

	// InvokeTimeout bounds each attempt of a resilient service call.
	InvokeTimeout time.Duration

	// InvokeMaxRetries is the number of retries after the first failed attempt.
	InvokeMaxRetries int

	// InvokeBackoff is the constant delay between retry attempts.
	InvokeBackoff time.Duration

	// BreakerThreshold is the consecutive-failure count that opens a circuit.
	BreakerThreshold int

	// BreakerCooldown is how long an open circuit waits before allowing a probe.
	BreakerCooldown time.Duration

	// SigningSecret authenticates scheduler-triggered internal job requests.
	SigningSecret string

	// TaskAPIBaseURL is the base URL of the task API collaborator.
	TaskAPIBaseURL string

	// ServiceBaseURL is this service's own base URL, used by the scheduler to
	// reach the internal job routes.
	ServiceBaseURL string

	// ShutdownTimeout is the maximum time to wait for in-flight work on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DedupTTL:         24 * time.Hour,
		ReminderDedupTTL: 7 * 24 * time.Hour,
		TaskCacheTTL:     5 * time.Minute,
		InvokeTimeout:    30 * time.Second,
		InvokeMaxRetries: 3,
		InvokeBackoff:    1 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}
