package memory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/store"
)

// countingEmbedder wraps HashEmbedder and counts calls and texts.
type countingEmbedder struct {
	mu    sync.Mutex
	inner *HashEmbedder
	calls int
	texts int
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: NewHashEmbedder(64)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.texts += len(texts)
	c.mu.Unlock()
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingStore is a VectorStore double that records every call.
type recordingStore struct {
	mu        sync.Mutex
	batches   [][]Entry
	queries   []Query
	matches   []Match
	upsertErr error
	queryErr  error
}

func (r *recordingStore) Upsert(_ context.Context, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.batches = append(r.batches, append([]Entry(nil), entries...))
	return nil
}

func (r *recordingStore) Query(_ context.Context, q Query) ([]Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	return r.matches, nil
}

func (r *recordingStore) Get(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		for _, e := range b {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return Entry{}, ErrNotFound
}

func (r *recordingStore) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.batches {
		n += len(b)
	}
	return n, nil
}

func (r *recordingStore) Close() error { return nil }

// recordingProvider captures completion requests.
type recordingProvider struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest
	answer   string
	err      error
}

func (p *recordingProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.answer}, nil
}

func (p *recordingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// newSQLiteStore opens a migrated database in a temp dir.
func newSQLiteStore(t *testing.T, e Embedder) *SQLiteVectorStore {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "vectors.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteVectorStore(db.DB(), e, nil)
}

// newChromemStore opens an in-memory chromem collection.
func newChromemStore(t *testing.T, e Embedder) *ChromemVectorStore {
	t.Helper()
	s, err := NewChromemVectorStore(ChromemConfig{}, e, nil)
	if err != nil {
		t.Fatalf("failed to create chromem store: %v", err)
	}
	return s
}
