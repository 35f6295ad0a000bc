package cmd

import (
	"context"
	"io"
	"os"

	"github.com/conneroisu/assetc/internal/backend"
	"github.com/conneroisu/assetc/internal/backend/builtin"
	"github.com/conneroisu/assetc/internal/config"
	"github.com/conneroisu/assetc/internal/dispatch"
	"github.com/conneroisu/assetc/internal/logging"
	"github.com/conneroisu/assetc/internal/pipeline"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg        *config.Config
	logger     logging.Logger
	registry   *backend.Registry
	pipeline   *pipeline.Pipeline
	dispatcher *dispatch.Dispatcher
}

// loadConfig reads and validates the configuration from the global viper
// instance.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger configured by cfg, writing to out.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stderr
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.LogFormat,
		Output:    out,
		Component: "assetc",
	}), nil
}

// newRegistry returns a registry holding the built-in backends.
func newRegistry(logger logging.Logger) (*backend.Registry, error) {
	reg := backend.NewRegistry()
	if err := builtin.Register(reg, logger); err != nil {
		return nil, err
	}
	return reg, nil
}

// newApp wires the registry, pipeline and dispatcher for cfg.
func newApp(cfg *config.Config, logOutput io.Writer, observers ...dispatch.Observer) (*app, error) {
	logger, err := newLogger(cfg, logOutput)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.ValidateWithDetails().Warnings {
		logger.Warn(context.Background(), nil, w.Message, "field", w.Field)
	}
	reg, err := newRegistry(logger)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(reg, pipeline.SettingsFromConfig(cfg), logger)
	opts := make([]dispatch.Option, 0, len(observers))
	for _, o := range observers {
		opts = append(opts, dispatch.WithObserver(o))
	}
	d, err := dispatch.New(cfg, reg, p, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, registry: reg, pipeline: p, dispatcher: d}, nil
}
