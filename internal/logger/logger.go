// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Config is the logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig returns info-level JSON logging.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "json",
	}
}

// New creates a logger writing to stderr and installs it as the default.
// Stdout is left to command output.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default: // "json"
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
