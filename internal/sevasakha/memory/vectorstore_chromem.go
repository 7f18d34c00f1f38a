package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	chromem "github.com/philippgille/chromem-go"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "executive_memory_mistral"

// ChromemConfig configures ChromemVectorStore.
type ChromemConfig struct {
	// Path is the directory chromem persists to. Empty keeps everything in
	// memory.
	Path string

	// Collection defaults to DefaultCollection.
	Collection string

	// Compress gzips the persisted documents.
	Compress bool
}

// ChromemVectorStore implements VectorStore on chromem-go, an embedded
// pure-Go vector database. Each document is written to disk as it is added,
// and reopening the same path loads the existing collection.
type ChromemVectorStore struct {
	db       *chromem.DB
	col      *chromem.Collection
	embedder Embedder
	logger   *slog.Logger
}

// NewChromemVectorStore opens (or creates) the collection. If logger is nil,
// the default slog logger is used.
func NewChromemVectorStore(cfg ChromemConfig, embedder Embedder, logger *slog.Logger) (*ChromemVectorStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("vectors chromem: create %s: %w", cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("vectors chromem: open %s: %w", cfg.Path, err)
		}
	}

	s := &ChromemVectorStore{db: db, embedder: embedder, logger: logger}

	// Vectors are always supplied by this store, but chromem falls back to
	// its embedding func for documents without one, so hand it ours.
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("vectors chromem: collection %s: %w", cfg.Collection, err)
	}
	s.col = col

	logger.Info("vectors chromem: collection ready",
		"path", cfg.Path,
		"collection", cfg.Collection,
		"documents", col.Count(),
	)
	return s, nil
}

func (s *ChromemVectorStore) embeddingFunc(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	return embedOne(ctx, s.embedder, text)
}

// Upsert adds the batch. Ids already present are rejected up front with
// ErrDuplicateID; chromem itself would silently overwrite them.
func (s *ChromemVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := checkBatch(entries); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := s.col.GetByID(ctx, e.ID); err == nil {
			return fmt.Errorf("%w: %q already stored", ErrDuplicateID, e.ID)
		}
	}

	entries = append([]Entry(nil), entries...)
	if err := fillEmbeddings(ctx, s.embedder, entries); err != nil {
		return fmt.Errorf("vectors chromem: %w", err)
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Metadata:  copyMeta(e.Metadata),
			Embedding: e.Embedding,
			Content:   e.Document,
		}
	}
	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("vectors chromem: add documents: %w", err)
	}

	s.logger.Debug("vectors chromem: stored batch", "entries", len(entries))
	return nil
}

// Query embeds q.Text and lets chromem rank with cosine similarity, passing
// q.Where through as chromem's metadata filter.
func (s *ChromemVectorStore) Query(ctx context.Context, q Query) ([]Match, error) {
	if q.TopK <= 0 {
		return nil, nil
	}
	// chromem rejects nResults larger than the collection.
	n := q.TopK
	total := s.col.Count()
	if total == 0 {
		return nil, nil
	}
	if n > total {
		n = total
	}

	queryVec, err := s.embeddingFunc(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vectors chromem: embed query: %w", err)
	}

	var where map[string]string
	if len(q.Where) > 0 {
		where = q.Where
	}
	results, err := s.col.QueryEmbedding(ctx, queryVec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vectors chromem: query: %w", err)
	}

	out := make([]Match, 0, len(results))
	for _, r := range results {
		out = append(out, Match{
			ID:       r.ID,
			Document: r.Content,
			Metadata: copyMeta(r.Metadata),
			Distance: 1 - float64(r.Similarity),
		})
	}
	return out, nil
}

// Get loads one document by id.
func (s *ChromemVectorStore) Get(ctx context.Context, id string) (Entry, error) {
	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return Entry{}, ErrNotFound
	}
	return Entry{
		ID:        doc.ID,
		Document:  doc.Content,
		Metadata:  copyMeta(doc.Metadata),
		Embedding: doc.Embedding,
	}, nil
}

// Count returns the number of documents in the collection.
func (s *ChromemVectorStore) Count(_ context.Context) (int, error) {
	return s.col.Count(), nil
}

// Close is a no-op: chromem writes each document as it is added.
func (s *ChromemVectorStore) Close() error { return nil }

// Compile-time interface satisfaction check.
var _ VectorStore = (*ChromemVectorStore)(nil)
