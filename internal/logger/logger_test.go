package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, output string)
	}{
		{
			name:   "Text format with info level",
			config: Config{Level: "info", Format: "text", Output: "stdout"},
			checkFunc: func(t *testing.T, output string) {
				if !strings.Contains(output, "level=INFO") || !strings.Contains(output, `msg="queue started"`) {
					t.Errorf("expected text output with info level, got: %s", output)
				}
			},
		},
		{
			name:   "JSON format",
			config: Config{Level: "info", Format: "json", Output: "stdout"},
			checkFunc: func(t *testing.T, output string) {
				var entry map[string]any
				if err := json.Unmarshal([]byte(output), &entry); err != nil {
					t.Fatalf("failed to unmarshal JSON log: %v, output: %s", err, output)
				}
				if entry["level"] != "INFO" || entry["msg"] != "queue started" {
					t.Errorf("unexpected JSON log entry: %v", entry)
				}
			},
		},
		{
			name:   "Invalid level falls back to info",
			config: Config{Level: "chatty", Format: "text"},
			checkFunc: func(t *testing.T, output string) {
				if !strings.Contains(output, "level=INFO") {
					t.Errorf("expected info-level fallback, got: %s", output)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.config, &buf)

			logger.Info("queue started", "max_concurrent", 3)

			tt.checkFunc(t, buf.String())
		})
	}
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn", Format: "text"}, &buf)

	logger.Info("should be filtered")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should be filtered") {
		t.Errorf("info message leaked through warn level: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("warn message missing: %s", output)
	}
}
