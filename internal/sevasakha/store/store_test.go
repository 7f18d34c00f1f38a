package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "sevasakha-test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v < 3 {
		t.Fatalf("expected schema version >= 3, got %d", v)
	}

	for _, table := range []string{"memory_vectors", "audit_log", "matrix_sync_state"} {
		var name string
		err := s.DB().QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s1, err := store.New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.WriteAudit(ctx, store.AuditRecord{Action: "index", Result: store.ResultOK}); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	v1, _ := s1.SchemaVersion(ctx)
	s1.Close()

	s2, err := store.New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	v2, _ := s2.SchemaVersion(ctx)
	if v1 != v2 {
		t.Errorf("schema version changed on reopen: %d -> %d", v1, v2)
	}
	entries, err := s2.GetAuditLog(ctx, 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 audit entry after reopen, got %d", len(entries))
	}
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	s, err := store.New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Close()
}
