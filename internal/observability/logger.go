// Package observability provides structured logging and run metrics for the
// runtime (spec.md §4.8, §9). Logger wraps log/slog with a child-binding
// API; MetricsCollector records latency, cost and other metric points and
// counters. Spend tracking itself lives in internal/budget.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog with a set of persistent structured bindings, merged
// into every emitted entry. spec.md §4.8 requires a child-binding API:
// "logger.child({module: ...}) MUST produce a logger that merges bindings
// into every emitted entry."
type Logger struct {
	inner *slog.Logger
}

// NewLogger creates a structured JSON logger. Output defaults to os.Stderr
// if w is nil.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{inner: slog.New(handler)}
}

// NewLoggerWithHandler creates a logger with a custom slog handler, used by
// tests that want to capture or assert on emitted records.
func NewLoggerWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: slog.New(h)}
}

// Child returns a new Logger with bindings merged into every field set
// emitted by it and every logger derived from it.
func (l *Logger) Child(bindings map[string]any) *Logger {
	attrs := make([]any, 0, len(bindings)*2)
	for k, v := range bindings {
		attrs = append(attrs, k, v)
	}
	return &Logger{inner: l.inner.With(attrs...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }
