package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func entry(id, st, doc string) Entry {
	return Entry{ID: id, Document: doc, Metadata: map[string]string{MetaSourceType: st, MetaTitle: id}}
}

// vectorStoreContract runs the behaviour every VectorStore must share.
func vectorStoreContract(t *testing.T, open func(t *testing.T, e Embedder) VectorStore) {
	ctx := context.Background()

	t.Run("UpsertGetCount", func(t *testing.T) {
		s := open(t, NewHashEmbedder(64))
		err := s.Upsert(ctx, []Entry{
			entry("email_a_0", "email", "Budget review moved to Thursday"),
			entry("contact_b_0", "contact", "Priya Shah, CFO at Acme"),
		})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		n, err := s.Count(ctx)
		if err != nil || n != 2 {
			t.Fatalf("Count = %d, %v; want 2", n, err)
		}
		got, err := s.Get(ctx, "contact_b_0")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Document != "Priya Shah, CFO at Acme" || got.Metadata[MetaSourceType] != "contact" {
			t.Errorf("unexpected entry %+v", got)
		}
		if len(got.Embedding) != 64 {
			t.Errorf("expected a 64-dim embedding, got %d", len(got.Embedding))
		}
		if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DuplicateIDIsRejected", func(t *testing.T) {
		s := open(t, NewHashEmbedder(64))
		if err := s.Upsert(ctx, []Entry{entry("x_1_0", "note", "original")}); err != nil {
			t.Fatal(err)
		}
		err := s.Upsert(ctx, []Entry{entry("x_1_0", "note", "overwrite attempt")})
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
		got, _ := s.Get(ctx, "x_1_0")
		if got.Document != "original" {
			t.Errorf("stored entry was overwritten: %q", got.Document)
		}
		err = s.Upsert(ctx, []Entry{entry("y_0", "note", "a"), entry("y_0", "note", "b")})
		if !errors.Is(err, ErrDuplicateID) {
			t.Errorf("expected ErrDuplicateID for repeated id in batch, got %v", err)
		}
	})

	t.Run("QueryRanksAndFilters", func(t *testing.T) {
		s := open(t, NewHashEmbedder(256))
		err := s.Upsert(ctx, []Entry{
			entry("document_1_0", "document", "Revenue grew 12%. Costs rose 3%."),
			entry("document_2_0", "document", "Office plants need watering on Mondays"),
			entry("email_3_0", "email", "Revenue grew 12% according to finance"),
		})
		if err != nil {
			t.Fatal(err)
		}

		all, err := s.Query(ctx, Query{Text: "revenue grew", TopK: 8})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 matches, got %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i].Distance < all[i-1].Distance {
				t.Errorf("matches not ordered by distance: %v", all)
			}
		}
		if all[len(all)-1].ID != "document_2_0" {
			t.Errorf("unrelated document should rank last, got %s", all[len(all)-1].ID)
		}

		docs, err := s.Query(ctx, Query{Text: "revenue grew", TopK: 8, Where: map[string]string{MetaSourceType: "document"}})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 document matches, got %d", len(docs))
		}
		for _, m := range docs {
			if m.SourceType() != "document" {
				t.Errorf("filter leaked %s", m.SourceType())
			}
		}
		if docs[0].ID != "document_1_0" {
			t.Errorf("expected the revenue document first, got %s", docs[0].ID)
		}

		top, _ := s.Query(ctx, Query{Text: "revenue", TopK: 1})
		if len(top) != 1 {
			t.Errorf("expected TopK to cap results, got %d", len(top))
		}

		none, err := s.Query(ctx, Query{Text: "revenue", TopK: 8, Where: map[string]string{MetaSourceType: "travel"}})
		if err != nil || len(none) != 0 {
			t.Errorf("expected no matches for an empty scope, got %d, %v", len(none), err)
		}
	})

	t.Run("EmptyStoreQuery", func(t *testing.T) {
		s := open(t, NewHashEmbedder(64))
		got, err := s.Query(ctx, Query{Text: "anything", TopK: 4})
		if err != nil || len(got) != 0 {
			t.Fatalf("expected no matches, got %d, %v", len(got), err)
		}
	})

	t.Run("EmbeddingFailureSurfaces", func(t *testing.T) {
		boom := errors.New("embedding service down")
		s := open(t, EmbedderFunc(func(context.Context, []string) ([][]float32, error) { return nil, boom }))
		err := s.Upsert(ctx, []Entry{entry("e_0", "email", "hello")})
		if !errors.Is(err, boom) {
			t.Fatalf("expected embedding error, got %v", err)
		}
		if n, _ := s.Count(ctx); n != 0 {
			t.Errorf("failed batch left %d entries", n)
		}
	})
}

func TestSQLiteVectorStore(t *testing.T) {
	vectorStoreContract(t, func(t *testing.T, e Embedder) VectorStore { return newSQLiteStore(t, e) })
}

func TestChromemVectorStore(t *testing.T) {
	vectorStoreContract(t, func(t *testing.T, e Embedder) VectorStore { return newChromemStore(t, e) })
}

func TestSQLiteVectorStore_CountBySource(t *testing.T) {
	s := newSQLiteStore(t, NewHashEmbedder(32))
	ctx := context.Background()
	err := s.Upsert(ctx, []Entry{
		entry("a", "email", "one"),
		entry("b", "email", "two"),
		entry("c", "task", "three"),
	})
	if err != nil {
		t.Fatal(err)
	}
	counts, err := s.CountBySource(ctx)
	if err != nil {
		t.Fatalf("CountBySource: %v", err)
	}
	if counts["email"] != 2 || counts["task"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestChromemVectorStore_ReopenKeepsEntries(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma_store")
	ctx := context.Background()
	e := NewHashEmbedder(64)

	s1, err := NewChromemVectorStore(ChromemConfig{Path: dir}, e, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Upsert(ctx, []Entry{entry("meeting_1_0", "meeting", "Board prep notes")}); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := NewChromemVectorStore(ChromemConfig{Path: dir}, e, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	n, _ := s2.Count(ctx)
	if n != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", n)
	}
	got, err := s2.Get(ctx, "meeting_1_0")
	if err != nil || got.Document != "Board prep notes" {
		t.Fatalf("Get after reopen: %+v, %v", got, err)
	}
	if err := s2.Upsert(ctx, []Entry{entry("meeting_1_0", "meeting", "again")}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID after reopen, got %v", err)
	}
}

func TestSQLiteVectorStore_ReopenKeepsEntries(t *testing.T) {
	// The sqlite store shares the application database; reopening it is
	// covered by store.TestNew_ReopenIsIdempotent. Here we check that a
	// second store on the same handle sees the same rows.
	e := NewHashEmbedder(32)
	s1 := newSQLiteStore(t, e)
	ctx := context.Background()
	if err := s1.Upsert(ctx, []Entry{entry("a", "email", "one")}); err != nil {
		t.Fatal(err)
	}
	s2 := NewSQLiteVectorStore(s1.db, e, nil)
	if n, _ := s2.Count(ctx); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}
