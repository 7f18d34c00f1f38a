package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/StackOverflowed512/AI-Secretary/common/trace"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithTrace_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, "info", "json")

	ctx := trace.WithTraceID(context.Background(), "t_abc")
	WithTrace(ctx, base).Info("indexed record", "chunks", 1)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["trace_id"] != "t_abc" {
		t.Errorf("expected trace_id t_abc, got %v", line["trace_id"])
	}
}

func TestWithTrace_NoTraceReturnsBase(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, "debug", "text")
	if WithTrace(context.Background(), base) != base {
		t.Error("expected the base logger when ctx has no trace id")
	}
	base.Debug("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestRedactSecrets(t *testing.T) {
	got := RedactSecrets("Bearer sk-123 failed", "sk-123")
	if strings.Contains(got, "sk-123") {
		t.Errorf("secret not redacted: %q", got)
	}
}
