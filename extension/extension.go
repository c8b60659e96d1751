package extension

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/api"
)

// Extension is the Forge extension for Cadence.
type Extension struct {
	config  Config
	opts    []cadence.Option
	logger  *slog.Logger
	cadence *cadence.Cadence
}

// New creates a new Cadence Forge extension.
func New(opts ...Option) *Extension {
	ext := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ext)
	}
	return ext
}

// Build constructs the Cadence instance from the extension's configuration
// and options. Idempotent: later calls return the first instance.
func (ext *Extension) Build() (*cadence.Cadence, error) {
	if ext.cadence != nil {
		return ext.cadence, nil
	}

	opts := append(ext.config.ToCadenceOptions(), ext.opts...)
	opts = append(opts, cadence.WithLogger(ext.logger))

	c, err := cadence.New(opts...)
	if err != nil {
		return nil, err
	}
	ext.cadence = c
	return c, nil
}

// Start builds the Cadence instance if needed and starts it.
func (ext *Extension) Start(ctx context.Context) error {
	c, err := ext.Build()
	if err != nil {
		return err
	}
	return c.Start(ctx)
}

// Stop gracefully stops the Cadence instance.
func (ext *Extension) Stop(ctx context.Context) {
	if ext.cadence != nil {
		ext.cadence.Stop(ctx)
	}
}

// Handler creates the plain HTTP handler for the service routes.
// This can be used standalone without Forge integration.
func (ext *Extension) Handler() (http.Handler, error) {
	c, err := ext.Build()
	if err != nil {
		return nil, err
	}
	return api.NewHandler(c, ext.config.SigningSecret, ext.logger), nil
}

// RegisterRoutes mounts the Forge API routes, unless routes are disabled.
func (ext *Extension) RegisterRoutes(router forge.Router, log forge.Logger) error {
	if ext.config.DisableRoutes {
		return nil
	}
	c, err := ext.Build()
	if err != nil {
		return err
	}
	forgeAPI := api.NewForgeAPI(c, ext.config.SigningSecret, log)
	forgeAPI.RegisterRoutes(router)
	return nil
}

// Prefix returns the configured URL prefix.
func (ext *Extension) Prefix() string { return ext.config.BasePath }
