// Package observability provides structured logging helpers for the
// assistant: a configured slog default and trace-aware child loggers.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/StackOverflowed512/AI-Secretary/common/redact"
	"github.com/StackOverflowed512/AI-Secretary/common/trace"
)

// ParseLevel maps "debug", "warn" and "error" to their slog levels; anything
// else is info.
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

// NewLogger builds a logger writing to w in the given format ("json" or
// text).
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(level, format string) *slog.Logger {
	logger := NewLogger(os.Stderr, level, format)
	slog.SetDefault(logger)
	return logger
}

// WithTrace returns a child of base that always includes the trace_id from
// ctx. A nil base uses the slog default.
func WithTrace(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return base
	}
	return base.With("trace_id", traceID)
}

// RedactSecrets replaces known-sensitive values in a log message with
// "[REDACTED]".
func RedactSecrets(msg string, sensitiveValues ...string) string {
	return redact.String(msg, sensitiveValues...)
}
