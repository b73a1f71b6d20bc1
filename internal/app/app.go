// Package app provides the application initialization and lifecycle management
package app

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/reposage/reposage/internal/config"
	"github.com/reposage/reposage/internal/gemini"
	"github.com/reposage/reposage/internal/loggy"
	"github.com/reposage/reposage/internal/review"
)

// App holds the application's wired services.
type App struct {
	Config *config.Config
	Gemini *gemini.Client
	Review *review.Service
	Logger *loggy.Logger
}

// New initializes the application: configuration from the environment,
// logging, and the review pipeline.
func New(envFile string) (*App, error) {
	cfg, err := config.LoadFromEnv(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.Set(cfg)

	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	logger := loggy.GetGlobalLogger()

	logger.Info("application initializing", "log_level", cfg.Logging.Level)

	geminiClient := gemini.NewClient(cfg.Gemini, logger)
	reviewService := review.NewService(cfg, geminiClient, logger)

	return &App{
		Config: cfg,
		Gemini: geminiClient,
		Review: reviewService,
		Logger: logger,
	}, nil
}

func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	return nil
}

// Shutdown releases application resources. Nothing is held open today;
// the hook exists so commands can defer it uniformly.
func (a *App) Shutdown() error {
	a.Logger.Debug("application shutting down")
	return nil
}

// FromContext retrieves the App instance stored in the CLI app's
// metadata by the Before hook.
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	application, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return application, nil
}
