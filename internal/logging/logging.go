// Package logging builds the structured slog logger shared by every entrypoint.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/petii/mp3-magic-machine/internal/config"
)

// New creates and configures the structured logger based on configuration
func New(cfg config.LoggingConfig) *slog.Logger {
	return slog.New(NewHandler(cfg, openOutput(cfg.Output)))
}

// NewHandler builds a JSON or text handler writing to output
func NewHandler(cfg config.LoggingConfig, output io.Writer) slog.Handler {
	level := ParseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(output, opts)
	default:
		return slog.NewTextHandler(output, opts)
	}
}

// ParseLevel maps a configured level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openOutput(output string) io.Writer {
	switch output {
	case "stderr":
		return os.Stderr
	case "stdout", "":
		return os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", output, err)
			return os.Stdout
		}
		return file
	}
}
