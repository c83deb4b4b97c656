// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/merge-warden/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	GitHub   GitHubConfig
	Queue    QueueConfig
	AI       AIConfig
	Database *DBConfig
	Logger   logger.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
}

// GitHubConfig holds the GitHub App credentials.
type GitHubConfig struct {
	AppID          int64
	WebhookSecret  string
	PrivateKeyPath string
}

// QueueConfig holds the job queue tuning knobs.
type QueueConfig struct {
	MaxConcurrentJobs int
	MaxRetries        int
	RetryDelay        time.Duration
	JobTimeout        time.Duration
	PollInterval      time.Duration
	CleanupInterval   time.Duration
	Retention         time.Duration
}

// Validate checks the queue knobs are inside sane operating bounds.
func (q QueueConfig) Validate() error {
	if q.MaxConcurrentJobs < 1 || q.MaxConcurrentJobs > 64 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be between 1 and 64, got %d", q.MaxConcurrentJobs)
	}
	if q.MaxRetries < 0 || q.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES must be between 0 and 10, got %d", q.MaxRetries)
	}
	if q.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY must not be negative, got %s", q.RetryDelay)
	}
	if q.JobTimeout < time.Second {
		return fmt.Errorf("JOB_TIMEOUT must be at least 1s, got %s", q.JobTimeout)
	}
	if q.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("POLL_INTERVAL must be at least 100ms, got %s", q.PollInterval)
	}
	if q.Retention < time.Minute {
		return fmt.Errorf("REVIEW_RETENTION must be at least 1m, got %s", q.Retention)
	}
	return nil
}

// AIConfig holds the LLM provider settings.
type AIConfig struct {
	Provider        string
	OllamaHost      string
	ModelName       string
	GeminiAPIKey    string
	GeminiModelName string
	RulesPath       string
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("GITHUB_PRIVATE_KEY_PATH", "keys/merge-warden-app.private-key.pem")

	viper.SetDefault("MAX_CONCURRENT_JOBS", 3)
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_DELAY", "30s")
	viper.SetDefault("JOB_TIMEOUT", "10m")
	viper.SetDefault("POLL_INTERVAL", "5s")
	viper.SetDefault("CLEANUP_INTERVAL", "1h")
	viper.SetDefault("REVIEW_RETENTION", "24h")

	viper.SetDefault("LLM_PROVIDER", "ollama")
	viper.SetDefault("OLLAMA_HOST", "http://localhost:11434")
	viper.SetDefault("MODEL_NAME", "gemma3:latest")
	viper.SetDefault("GEMINI_MODEL_NAME", "gemini-2.5-flash")
	viper.SetDefault("REVIEW_RULES_PATH", "merge-warden-rules.yml")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "merge_warden")
	viper.SetDefault("DB_NAME", "merge_warden")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	// A missing .env file is fine; environment variables still apply.
	if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read .env file", "error", err)
		}
	}

	if viper.GetInt64("GITHUB_APP_ID") == 0 {
		return nil, fmt.Errorf("GITHUB_APP_ID must be set")
	}
	if viper.GetString("GITHUB_WEBHOOK_SECRET") == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		GitHub: GitHubConfig{
			AppID:          viper.GetInt64("GITHUB_APP_ID"),
			WebhookSecret:  viper.GetString("GITHUB_WEBHOOK_SECRET"),
			PrivateKeyPath: viper.GetString("GITHUB_PRIVATE_KEY_PATH"),
		},
		Queue: QueueConfig{
			MaxConcurrentJobs: viper.GetInt("MAX_CONCURRENT_JOBS"),
			MaxRetries:        viper.GetInt("MAX_RETRIES"),
			RetryDelay:        viper.GetDuration("RETRY_DELAY"),
			JobTimeout:        viper.GetDuration("JOB_TIMEOUT"),
			PollInterval:      viper.GetDuration("POLL_INTERVAL"),
			CleanupInterval:   viper.GetDuration("CLEANUP_INTERVAL"),
			Retention:         viper.GetDuration("REVIEW_RETENTION"),
		},
		AI: AIConfig{
			Provider:        viper.GetString("LLM_PROVIDER"),
			OllamaHost:      viper.GetString("OLLAMA_HOST"),
			ModelName:       viper.GetString("MODEL_NAME"),
			GeminiAPIKey:    viper.GetString("GEMINI_API_KEY"),
			GeminiModelName: viper.GetString("GEMINI_MODEL_NAME"),
			RulesPath:       viper.GetString("REVIEW_RULES_PATH"),
		},
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			SSLMode:         viper.GetString("DB_SSLMODE"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Logger: logger.Config{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
			Output: viper.GetString("LOG_OUTPUT"),
		},
	}

	if err := cfg.Queue.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue configuration: %w", err)
	}
	return cfg, nil
}
