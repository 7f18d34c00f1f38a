package store_test

import (
	"context"
	"testing"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/store"
)

func TestWriteAndReadAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WriteAudit(ctx, store.AuditRecord{
		TraceID: "t_abc",
		Actor:   "cli",
		Action:  "index",
		Target:  "document",
		Result:  store.ResultOK,
		Payload: store.AuditPayload{"chunks": 3, "title": "Q1 Report"},
	})
	if err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	err = s.WriteAudit(ctx, store.AuditRecord{
		TraceID: "t_abc",
		Actor:   "cli",
		Action:  "ask",
		Target:  "document",
		Result:  store.ResultFailed,
		Error:   "memory search failed",
	})
	if err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	recent, err := s.GetAuditLog(ctx, 10)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Action != "ask" {
		t.Errorf("expected newest entry first, got %q", recent[0].Action)
	}
	if !recent[0].ErrorMessage.Valid || recent[0].ErrorMessage.String != "memory search failed" {
		t.Errorf("unexpected error message: %+v", recent[0].ErrorMessage)
	}
	if !recent[1].PayloadJSON.Valid {
		t.Error("expected payload JSON on index entry")
	}
	if recent[1].Target.String != "document" {
		t.Errorf("target: got %q", recent[1].Target.String)
	}

	byTrace, err := s.GetAuditByTrace(ctx, "t_abc")
	if err != nil {
		t.Fatalf("GetAuditByTrace: %v", err)
	}
	if len(byTrace) != 2 || byTrace[0].Action != "index" {
		t.Errorf("expected index then ask for trace, got %d entries", len(byTrace))
	}
}

func TestGetAuditLog_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.WriteAudit(ctx, store.AuditRecord{Action: "ask", Result: store.ResultEmpty}); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	entries, err := s.GetAuditLog(ctx, 3)
	if err != nil {
		t.Fatalf("GetAuditLog: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}
