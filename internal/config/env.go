package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables, reading a
// .env file first when one exists. envFilePath may be empty to use the
// default lookup (REPOSAGE_ENV_FILE, then ./.env).
func LoadFromEnv(envFilePath string) (*Config, error) {
	cfg := New()

	if envFilePath == "" {
		envFilePath = getEnvString("REPOSAGE_ENV_FILE", "")
	}
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, err
		}
	} else {
		_ = godotenv.Load() // Ignore errors if no .env in the current directory
	}

	cfg.GitHub = PlatformConfig{
		Token:          getEnvString("REPOSAGE_GITHUB_TOKEN", ""),
		BaseURL:        getEnvString("REPOSAGE_GITHUB_API_URL", "https://api.github.com"),
		RequestTimeout: getEnvDuration("REPOSAGE_GITHUB_REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("REPOSAGE_GITHUB_MAX_RETRIES", 3),
	}

	cfg.GitLab = PlatformConfig{
		Token:          getEnvString("REPOSAGE_GITLAB_TOKEN", ""),
		BaseURL:        getEnvString("REPOSAGE_GITLAB_API_URL", ""), // Derived from the MR host when empty
		RequestTimeout: getEnvDuration("REPOSAGE_GITLAB_REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("REPOSAGE_GITLAB_MAX_RETRIES", 3),
	}

	cfg.Bitbucket = PlatformConfig{
		Token:          getEnvString("REPOSAGE_BITBUCKET_APP_PASSWORD", ""),
		Username:       getEnvString("REPOSAGE_BITBUCKET_USERNAME", ""),
		BaseURL:        getEnvString("REPOSAGE_BITBUCKET_API_URL", "https://api.bitbucket.org/2.0"),
		RequestTimeout: getEnvDuration("REPOSAGE_BITBUCKET_REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("REPOSAGE_BITBUCKET_MAX_RETRIES", 3),
	}

	cfg.Gemini = GeminiConfig{
		APIKey:      getEnvString("REPOSAGE_GEMINI_API_KEY", ""),
		BaseURL:     getEnvString("REPOSAGE_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		APIVersion:  getEnvString("REPOSAGE_GEMINI_API_VERSION", "v1beta"),
		Model:       getEnvString("REPOSAGE_GEMINI_MODEL", "gemini-1.5-flash"),
		Timeout:     getEnvDuration("REPOSAGE_GEMINI_TIMEOUT", 30*time.Second),
		MaxRetries:  getEnvInt("REPOSAGE_GEMINI_MAX_RETRIES", 3),
		MaxTokens:   getEnvInt("REPOSAGE_GEMINI_MAX_TOKENS", 4096),
		Temperature: getEnvFloat("REPOSAGE_GEMINI_TEMPERATURE", 0.1),
	}

	cfg.Review = ReviewConfig{
		MaxDiffBytes:  getEnvInt("REPOSAGE_MAX_DIFF_BYTES", 50000),
		MaxDiffTokens: getEnvInt("REPOSAGE_MAX_DIFF_TOKENS", 8000),
		BytesPerToken: getEnvInt("REPOSAGE_BYTES_PER_TOKEN", 4),
		PostComments:  getEnvBool("REPOSAGE_POST_COMMENTS", false),
	}

	cfg.Server = ServerConfig{
		Addr:            getEnvString("REPOSAGE_SERVER_ADDR", ":5000"),
		RequestsPerSec:  getEnvFloat("REPOSAGE_RATE_LIMIT_RPS", 1),
		Burst:           getEnvInt("REPOSAGE_RATE_LIMIT_BURST", 5),
		ShutdownTimeout: getEnvDuration("REPOSAGE_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("REPOSAGE_LOG_LEVEL", "info"),
		Format:     getEnvString("REPOSAGE_LOG_FORMAT", "text"),
		Output:     getEnvString("REPOSAGE_LOG_OUTPUT", "stderr"),
		AddSource:  getEnvBool("REPOSAGE_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("REPOSAGE_LOG_TIME_FORMAT", time.RFC3339),
	}

	return cfg, cfg.Validate()
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
