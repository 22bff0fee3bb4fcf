package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kbukum/wirekit/config"
	"github.com/kbukum/wirekit/engine"
	"github.com/kbukum/wirekit/logger"
	"github.com/kbukum/wirekit/observability"
	"github.com/kbukum/wirekit/scanner"
	"github.com/kbukum/wirekit/version"
)

// app is the wiring shared by every command that touches a source tree.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	telemetry *observability.Telemetry
	engine    *engine.Engine
}

// newApp loads configuration (file, env, then the changed flags in fs),
// initializes logging and telemetry, and builds the engine.
func newApp(ctx context.Context, fs *pflag.FlagSet, bindings []config.FlagBinding) (*app, error) {
	opts := []config.LoaderOption{config.WithFlags(fs, bindings...)}
	if path, _ := fs.GetString(flagConfig); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if path, _ := fs.GetString(flagEnvFile); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	tel, err := observability.Setup(ctx, cfg.Telemetry, version.Get().Short())
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	sc := scanner.New(
		scanner.WithWorkers(cfg.Workers),
		scanner.WithExclude(cfg.Exclude...),
		scanner.WithParsers(
			scanner.NewGoParser(cfg.Classifier()),
			scanner.NewManifestParser(cfg.Classifier()),
		),
		scanner.WithLogger(logger.Get(logger.ComponentScanner)),
	)
	eng := engine.New(scanner.FS(cfg.Root),
		engine.WithCache(cfg.CachePath()),
		engine.WithScanner(sc),
		engine.WithLogger(logger.Get(logger.ComponentEngine)),
		engine.WithMetrics(tel.Metrics),
	)

	log.WithFields(version.Get().Fields()).Debug("wirekit configured", logger.Fields(
		logger.FieldRoot, cfg.Root,
		"cache", cfg.CachePath(),
		"telemetry", tel.Enabled(),
	))
	return &app{cfg: cfg, log: log, telemetry: tel, engine: eng}, nil
}

// close flushes telemetry. Errors are logged, never returned: the command
// outcome decides the exit code.
func (a *app) close(ctx context.Context) {
	if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.log.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
	}
}
