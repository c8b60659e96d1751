package extension

import (
	"github.com/xraph/cadence"
)

// Config holds configuration for the Cadence Forge extension.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.cadence" or "cadence" keys).
type Config struct {
	// Config embeds the core cadence configuration.
	cadence.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all cadence routes (default: "/cadence").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// GroveKV is the name of a grove kv.Store registered in the DI container.
	// When set, the extension resolves this named KV store and auto-constructs
	// a Redis-backed state store. When empty and WithGroveKV was called, the
	// default (unnamed) kv.Store is used.
	GroveKV string `json:"grove_kv" mapstructure:"grove_kv" yaml:"grove_kv"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   cadence.DefaultConfig(),
		BasePath: "/cadence",
	}
}

// ToCadenceOptions converts the embedded Config into cadence.Option values.
func (c Config) ToCadenceOptions() []cadence.Option {
	var opts []cadence.Option

	if c.DedupTTL > 0 {
		opts = append(opts, cadence.WithDedupTTL(c.DedupTTL))
	}
	if c.ReminderDedupTTL > 0 {
		opts = append(opts, cadence.WithReminderDedupTTL(c.ReminderDedupTTL))
	}
	if c.TaskCacheTTL > 0 {
		opts = append(opts, cadence.WithTaskCacheTTL(c.TaskCacheTTL))
	}
	if c.TaskAPIBaseURL != "" {
		opts = append(opts, cadence.WithTaskAPI(c.TaskAPIBaseURL))
	}
	if c.ServiceBaseURL != "" {
		opts = append(opts, cadence.WithServiceBaseURL(c.ServiceBaseURL))
	}
	if c.SigningSecret != "" {
		opts = append(opts, cadence.WithSigningSecret(c.SigningSecret))
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, cadence.WithShutdownTimeout(c.ShutdownTimeout))
	}

	return opts
}
