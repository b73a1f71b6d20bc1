// Package config loads and validates the application configuration from
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	GitHub    PlatformConfig
	GitLab    PlatformConfig
	Bitbucket PlatformConfig
	Gemini    GeminiConfig
	Review    ReviewConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

// PlatformConfig holds credentials and connection settings for one git
// hosting platform
type PlatformConfig struct {
	Token          string        // API token (app password for Bitbucket)
	Username       string        // Account name, used for Bitbucket basic auth
	BaseURL        string        // API base URL, overridable for self-hosted instances
	RequestTimeout time.Duration // Per-request timeout
	MaxRetries     int           // Maximum retries on retryable errors
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey      string        // Gemini API key
	BaseURL     string        // Gemini API base URL
	APIVersion  string        // API version (v1 or v1beta)
	Model       string        // Model to use
	Timeout     time.Duration // Request timeout
	MaxRetries  int           // Maximum number of retries on failure
	MaxTokens   int           // Max tokens to generate for responses
	Temperature float64       // Generation temperature
}

// ReviewConfig holds diff budgeting and analysis settings
type ReviewConfig struct {
	MaxDiffBytes  int // Largest diff submitted to the model, in bytes
	MaxDiffTokens int // Estimated token ceiling for the diff portion of a prompt
	BytesPerToken int // Deterministic bytes-per-token approximation
	PostComments  bool
}

// ServerConfig holds the HTTP front end configuration
type ServerConfig struct {
	Addr            string        // Listen address
	RequestsPerSec  float64       // Per-client token bucket refill rate
	Burst           int           // Per-client token bucket size
	ShutdownTimeout time.Duration // Grace period for in-flight requests
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateGemini(); err != nil {
		return fmt.Errorf("Gemini config: %w", err)
	}

	if err := c.validateReview(); err != nil {
		return fmt.Errorf("review config: %w", err)
	}

	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if c.Gemini.APIVersion != "v1" && c.Gemini.APIVersion != "v1beta" {
		return fmt.Errorf("invalid API version: %s (must be v1 or v1beta)", c.Gemini.APIVersion)
	}

	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Gemini.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be positive")
	}

	if c.Gemini.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}

	return nil
}

func (c *Config) validateReview() error {
	if c.Review.MaxDiffBytes <= 0 {
		return fmt.Errorf("max diff bytes must be positive")
	}

	if c.Review.MaxDiffTokens <= 0 {
		return fmt.Errorf("max diff tokens must be positive")
	}

	if c.Review.BytesPerToken <= 0 {
		return fmt.Errorf("bytes per token must be positive")
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if c.Server.RequestsPerSec <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}

	if c.Server.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}
