// Package logger provides the slog setup shared by every command:
// text output on a TTY, JSON otherwise, overridable by LOG_FORMAT,
// level taken from LOG_LEVEL (debug/info/warn/error, default info).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const jobIDKey contextKey = "log_job_id"

// WithJobID attaches an export job id to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID returns the job id stored in ctx, if any
func JobID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(jobIDKey).(string); ok {
		return v
	}
	return ""
}

// FromContext returns log with the job id from ctx attached
func FromContext(ctx context.Context, log *slog.Logger) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	if id := JobID(ctx); id != "" {
		return log.With("job_id", id)
	}
	return log
}

// New builds a logger writing to stdout using the environment settings
func New() *slog.Logger {
	return NewWithOptions(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// NewWithOptions builds a logger for an explicit writer, level and format.
// An empty format selects text for terminals and JSON for everything else.
func NewWithOptions(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty(f) {
			format = "text"
		}
	}

	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetDefault creates a logger from the environment and installs it as slog's default
func SetDefault() *slog.Logger {
	log := New()
	slog.SetDefault(log)
	return log
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Discard returns a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
