// Package logger builds the application's slog logger from configuration.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// logFileName is where logs land when file output is configured.
const logFileName = "merge-warden.log"

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// NewLogger builds a slog logger from the configuration. When output is nil
// the destination is resolved from cfg.Output; an unknown level or format
// falls back to info-level text on stdout.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = resolveOutput(cfg.Output)
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		*level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

func resolveOutput(name string) io.Writer {
	switch name {
	case "stderr":
		return os.Stderr
	case "file":
		file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			slog.Warn("failed to open log file, falling back to stdout", "file", logFileName, "error", err)
			return os.Stdout
		}
		return file
	default:
		return os.Stdout
	}
}
