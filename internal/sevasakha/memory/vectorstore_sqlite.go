package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// SQLiteVectorStore implements VectorStore on the memory_vectors table of
// the application database. Vectors are little-endian float32 BLOBs and
// metadata is a JSON object.
//
// Search loads the candidate rows (narrowed by source_type in SQL when the
// filter has one) and ranks them with cosine similarity in Go, because
// modernc.org/sqlite cannot load vector extensions. That is fine for the
// tens of thousands of chunks a single assistant accumulates.
type SQLiteVectorStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

// NewSQLiteVectorStore creates a store on db. The memory_vectors table must
// exist (migration 0001). If logger is nil, the default slog logger is used.
func NewSQLiteVectorStore(db *sql.DB, embedder Embedder, logger *slog.Logger) *SQLiteVectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteVectorStore{db: db, embedder: embedder, logger: logger}
}

// Upsert inserts all entries in one transaction: either every row lands or
// none do. An id that already exists fails the batch with ErrDuplicateID.
func (s *SQLiteVectorStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := checkBatch(entries); err != nil {
		return err
	}
	entries = append([]Entry(nil), entries...)
	if err := fillEmbeddings(ctx, s.embedder, entries); err != nil {
		return fmt.Errorf("vectors sqlite: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectors sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memory_vectors (id, source_type, document, metadata, embedding, dims, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("vectors sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		metaJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("vectors sqlite: marshal metadata for %s: %w", e.ID, err)
		}
		createdAt := e.Metadata[MetaCreatedAt]
		if createdAt == "" {
			createdAt = now
		}
		_, err = stmt.ExecContext(ctx,
			e.ID,
			e.Metadata[MetaSourceType],
			e.Document,
			string(metaJSON),
			EncodeEmbedding(e.Embedding),
			len(e.Embedding),
			createdAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %q already stored", ErrDuplicateID, e.ID)
			}
			return fmt.Errorf("vectors sqlite: insert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vectors sqlite: commit: %w", err)
	}

	s.logger.Debug("vectors sqlite: stored batch", "entries", len(entries))
	return nil
}

// Query ranks matching rows by cosine similarity to the embedded query text.
func (s *SQLiteVectorStore) Query(ctx context.Context, q Query) ([]Match, error) {
	if q.TopK <= 0 {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("vectors sqlite: no embedder configured")
	}
	queryVec, err := embedOne(ctx, s.embedder, q.Text)
	if err != nil {
		return nil, fmt.Errorf("vectors sqlite: embed query: %w", err)
	}

	sqlText := `SELECT id, document, metadata, embedding FROM memory_vectors`
	var args []any
	if st, ok := q.Where[MetaSourceType]; ok {
		sqlText += ` WHERE source_type = ?`
		args = append(args, st)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("vectors sqlite: query rows: %w", err)
	}
	defer rows.Close()

	var candidates []scoredMatch
	for rows.Next() {
		m, vec, err := scanVectorRow(rows)
		if err != nil {
			s.logger.Warn("vectors sqlite: skip malformed row", "err", err)
			continue
		}
		if !matchesWhere(m.Metadata, q.Where) {
			continue
		}
		sim, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			s.logger.Warn("vectors sqlite: skip row from another embedding space", "id", m.ID, "err", err)
			continue
		}
		m.Distance = 1 - sim
		candidates = append(candidates, scoredMatch{match: m, score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectors sqlite: iterate rows: %w", err)
	}

	sortByScore(candidates)
	if len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}
	out := make([]Match, len(candidates))
	for i, c := range candidates {
		out[i] = c.match
	}
	return out, nil
}

// Get loads one entry by id.
func (s *SQLiteVectorStore) Get(ctx context.Context, id string) (Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding FROM memory_vectors WHERE id = ?`, id)
	if err != nil {
		return Entry{}, fmt.Errorf("vectors sqlite: get %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Entry{}, fmt.Errorf("vectors sqlite: get %s: %w", id, err)
		}
		return Entry{}, ErrNotFound
	}
	m, vec, err := scanVectorRow(rows)
	if err != nil {
		return Entry{}, fmt.Errorf("vectors sqlite: get %s: %w", id, err)
	}
	return Entry{ID: m.ID, Document: m.Document, Metadata: m.Metadata, Embedding: vec}, nil
}

// Count returns the number of stored rows.
func (s *SQLiteVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vectors sqlite: count: %w", err)
	}
	return n, nil
}

// CountBySource returns the number of stored rows per source_type.
func (s *SQLiteVectorStore) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, COUNT(*) FROM memory_vectors GROUP BY source_type`)
	if err != nil {
		return nil, fmt.Errorf("vectors sqlite: count by source: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			st string
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("vectors sqlite: count by source scan: %w", err)
		}
		out[st] = n
	}
	return out, rows.Err()
}

// Close is a no-op; the database handle belongs to the caller.
func (s *SQLiteVectorStore) Close() error { return nil }

// scanVectorRow reads id, document, metadata, embedding.
func scanVectorRow(rows *sql.Rows) (Match, []float32, error) {
	var (
		m        Match
		metaJSON string
		blob     []byte
	)
	if err := rows.Scan(&m.ID, &m.Document, &metaJSON, &blob); err != nil {
		return Match{}, nil, fmt.Errorf("scan row: %w", err)
	}
	m.Metadata = make(map[string]string)
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return Match{}, nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	vec, err := DecodeEmbedding(blob)
	if err != nil {
		return Match{}, nil, err
	}
	return m, vec, nil
}

// scoredMatch pairs a match with its cosine similarity.
type scoredMatch struct {
	match Match
	score float64
}

// sortByScore orders by descending similarity; ties keep insertion order.
func sortByScore(items []scoredMatch) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
}

func isUniqueViolation(err error) bool {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// SQLITE_CONSTRAINT_PRIMARYKEY (1555) and SQLITE_CONSTRAINT_UNIQUE (2067).
		if c := coder.Code(); c == 1555 || c == 2067 {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

// Compile-time interface satisfaction check.
var _ VectorStore = (*SQLiteVectorStore)(nil)
