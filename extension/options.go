package extension

import (
	"log/slog"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/bus"
	"github.com/xraph/cadence/state"
)

// Option configures the Cadence Forge extension.
type Option func(*Extension)

// WithStateStore sets the state backend via a cadence option.
func WithStateStore(s state.Store) Option {
	return func(e *Extension) {
		e.opts = append(e.opts, cadence.WithStateStore(s))
	}
}

// WithTransport sets the pub/sub transport via a cadence option.
func WithTransport(t bus.Transport) Option {
	return func(e *Extension) {
		e.opts = append(e.opts, cadence.WithTransport(t))
	}
}

// WithPrefix sets the URL prefix for all cadence routes.
func WithPrefix(prefix string) Option {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) Option {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithCadenceOption appends a raw cadence.Option to the extension.
func WithCadenceOption(opt cadence.Option) Option {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithLogger sets the structured logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}
