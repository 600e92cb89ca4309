// Package logging provides structured logging for the gate daemon.
// It wraps log/slog with level and format selection from configuration and
// per-component child loggers. All methods are safe for concurrent use.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls logger construction.
type Options struct {
	Level  string // debug, info, warn, error (default info)
	Format string // json or text (default text)
	Output string // stdout or stderr (default stdout)
}

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the given options, tagging every record with the
// service name.
func New(opts Options) *Logger {
	var output io.Writer
	switch strings.ToLower(opts.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	hopts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, hopts)
	default:
		handler = slog.NewTextHandler(output, hopts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "automated-gate"),
	})

	return &Logger{Logger: slog.New(handler)}
}

// With returns a child logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a text logger at info level for use before configuration
// is loaded.
func Default() *Logger {
	return New(Options{})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
