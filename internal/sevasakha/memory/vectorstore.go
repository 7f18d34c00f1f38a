package memory

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Metadata keys every stored chunk carries.
const (
	MetaSourceType = "source_type"
	MetaTitle      = "title"
	MetaCreatedAt  = "created_at"
	MetaChunkIndex = "chunk_index"
)

var (
	// ErrNotFound is returned by VectorStore.Get for an unknown id.
	ErrNotFound = errors.New("memory: entry not found")

	// ErrDuplicateID is returned by VectorStore.Upsert when an id already
	// exists in the store or repeats within the batch. Stored entries are
	// never overwritten.
	ErrDuplicateID = errors.New("memory: duplicate entry id")

	// ErrEmbeddingCount is returned when an embedder yields a different
	// number of vectors than texts.
	ErrEmbeddingCount = errors.New("memory: embedding count mismatch")

	// ErrDimensionMismatch is returned when vectors of different lengths are
	// compared.
	ErrDimensionMismatch = errors.New("memory: embedding dimension mismatch")
)

func errEmbeddingCount(want, got int) error {
	return fmt.Errorf("%w: want %d, got %d", ErrEmbeddingCount, want, got)
}

// Entry is one stored chunk. A nil Embedding is filled in by the store from
// Document using its Embedder.
type Entry struct {
	ID        string
	Document  string
	Metadata  map[string]string
	Embedding []float32
}

// Query selects the TopK entries closest to Text among those whose metadata
// matches every key/value pair in Where. An empty Where matches everything.
type Query struct {
	Text  string
	TopK  int
	Where map[string]string
}

// Match is one query hit. Distance is 1 - cosine similarity; lower is closer.
type Match struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float64
}

// SourceType returns the match's source_type metadata.
func (m Match) SourceType() string { return m.Metadata[MetaSourceType] }

// Title returns the match's title metadata.
func (m Match) Title() string { return m.Metadata[MetaTitle] }

// VectorStore persists chunks with their vectors and answers similarity
// queries. Implementations must be safe for concurrent Upsert and Query.
type VectorStore interface {
	// Upsert inserts a batch of new entries. Ids must not already exist;
	// a failure leaves no partial batch behind where the backend allows it.
	Upsert(ctx context.Context, entries []Entry) error

	// Query embeds q.Text with the store's Embedder and returns at most
	// q.TopK matches ordered by ascending distance.
	Query(ctx context.Context, q Query) ([]Match, error)

	// Get returns the entry with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

// checkBatch rejects empty ids and ids repeated within one batch.
func checkBatch(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("memory: entry %d has an empty id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: %q repeated in batch", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}

// fillEmbeddings embeds, in one call, the documents of entries that have no
// vector yet.
func fillEmbeddings(ctx context.Context, e Embedder, entries []Entry) error {
	var (
		texts []string
		idx   []int
	)
	for i := range entries {
		if len(entries[i].Embedding) == 0 {
			texts = append(texts, entries[i].Document)
			idx = append(idx, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	if e == nil {
		return fmt.Errorf("memory: %d entries need embedding but no embedder is configured", len(texts))
	}
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return errEmbeddingCount(len(texts), len(vecs))
	}
	for j, i := range idx {
		entries[i].Embedding = vecs[j]
	}
	return nil
}

// matchesWhere reports whether meta contains every pair in where.
func matchesWhere(meta, where map[string]string) bool {
	for k, v := range where {
		if got, ok := meta[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// copyMeta returns a shallow copy of m.
func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EncodeEmbedding packs a vector as little-endian float32s.
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding unpacks a vector written by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("memory: embedding blob length %d is not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
