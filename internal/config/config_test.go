package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConfig_Validate(t *testing.T) {
	valid := QueueConfig{
		MaxConcurrentJobs: 3,
		MaxRetries:        2,
		RetryDelay:        30 * time.Second,
		JobTimeout:        10 * time.Minute,
		PollInterval:      5 * time.Second,
		CleanupInterval:   time.Hour,
		Retention:         24 * time.Hour,
	}

	tests := []struct {
		name    string
		mutate  func(*QueueConfig)
		wantErr bool
	}{
		{
			name:    "Valid defaults",
			mutate:  func(*QueueConfig) {},
			wantErr: false,
		},
		{
			name:    "Zero retries is allowed",
			mutate:  func(q *QueueConfig) { q.MaxRetries = 0 },
			wantErr: false,
		},
		{
			name:    "Zero concurrency",
			mutate:  func(q *QueueConfig) { q.MaxConcurrentJobs = 0 },
			wantErr: true,
		},
		{
			name:    "Concurrency above ceiling",
			mutate:  func(q *QueueConfig) { q.MaxConcurrentJobs = 65 },
			wantErr: true,
		},
		{
			name:    "Negative retries",
			mutate:  func(q *QueueConfig) { q.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "Excessive retries",
			mutate:  func(q *QueueConfig) { q.MaxRetries = 11 },
			wantErr: true,
		},
		{
			name:    "Negative retry delay",
			mutate:  func(q *QueueConfig) { q.RetryDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "Sub-second job timeout",
			mutate:  func(q *QueueConfig) { q.JobTimeout = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "Too-aggressive poll interval",
			mutate:  func(q *QueueConfig) { q.PollInterval = 50 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "Sub-minute retention",
			mutate:  func(q *QueueConfig) { q.Retention = 30 * time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "hunter2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, int64(12345), cfg.GitHub.AppID)
	assert.Equal(t, "hunter2", cfg.GitHub.WebhookSecret)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Queue.MaxConcurrentJobs)
	assert.Equal(t, 2, cfg.Queue.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Queue.RetryDelay)
	assert.Equal(t, 10*time.Minute, cfg.Queue.JobTimeout)
	assert.Equal(t, 5*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.Queue.Retention)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadConfigOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "hunter2")
	t.Setenv("MAX_CONCURRENT_JOBS", "8")
	t.Setenv("JOB_TIMEOUT", "2m")
	t.Setenv("REVIEW_RETENTION", "1h")
	t.Setenv("LLM_PROVIDER", "gemini")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Queue.MaxConcurrentJobs)
	assert.Equal(t, 2*time.Minute, cfg.Queue.JobTimeout)
	assert.Equal(t, time.Hour, cfg.Queue.Retention)
	assert.Equal(t, "gemini", cfg.AI.Provider)
}

func TestLoadConfigRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Missing app ID",
			env:  map[string]string{"GITHUB_APP_ID": "", "GITHUB_WEBHOOK_SECRET": "hunter2"},
		},
		{
			name: "Missing webhook secret",
			env:  map[string]string{"GITHUB_APP_ID": "12345", "GITHUB_WEBHOOK_SECRET": ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsInvalidQueueSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "hunter2")
	t.Setenv("MAX_CONCURRENT_JOBS", "0")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_CONCURRENT_JOBS")
}
