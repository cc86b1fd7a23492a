// Package notify reports finished exports out of band.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Title heads every notification
const Title = "Eva Table Reactor"

// Event describes a finished export
type Event struct {
	JobID      string
	SchemaID   string
	SchemaName string
	Dates      int
	Rows       int
	Location   string
	Err        error
}

// Failed reports whether the export ended in error
func (e Event) Failed() bool {
	return e.Err != nil
}

// Message renders the human readable notification text
func (e Event) Message() string {
	if e.Err != nil {
		if msg := e.Err.Error(); msg != "" {
			return msg
		}
		return "Export failed."
	}

	name := e.SchemaName
	if name == "" {
		name = "table"
	}
	plural := "s"
	if e.Dates == 1 {
		plural = ""
	}
	return fmt.Sprintf("Export for %s completed (%d date%s).", name, e.Dates, plural)
}

// Notifier delivers an Event somewhere
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Log writes events to a structured logger
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, ev Event) error {
	attrs := []any{"job_id", ev.JobID, "schema_id", ev.SchemaID, "dates", ev.Dates}
	if ev.Failed() {
		l.logger.ErrorContext(ctx, ev.Message(), append(attrs, "error", ev.Err)...)
		return nil
	}
	l.logger.InfoContext(ctx, ev.Message(), append(attrs, "rows", ev.Rows, "location", ev.Location)...)
	return nil
}

// Multi fans an event out to every notifier
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
