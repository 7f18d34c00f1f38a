package trace_test

import (
	"context"
	"strings"
	"testing"

	"github.com/StackOverflowed512/AI-Secretary/common/trace"
)

func TestGenerateID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := trace.GenerateID()
		if !strings.HasPrefix(id, "t_") || len(id) != 34 {
			t.Fatalf("unexpected trace id format %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate trace id %q", id)
		}
		seen[id] = true
	}
}

func TestEnsure(t *testing.T) {
	ctx, id := trace.Ensure(context.Background())
	if id == "" || trace.FromContext(ctx) != id {
		t.Fatalf("Ensure did not attach id: %q", id)
	}
	again, id2 := trace.Ensure(ctx)
	if id2 != id || again != ctx {
		t.Errorf("Ensure should keep an existing id, got %q want %q", id2, id)
	}
}

func TestFromContext_Absent(t *testing.T) {
	if got := trace.FromContext(context.Background()); got != "" {
		t.Errorf("expected empty trace id, got %q", got)
	}
}
