package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status messages returned by the Indexer.
const (
	MsgNothingToIndex = "Nothing to index."
	MsgNoChunks       = "No non-empty chunks."
	MsgNotInitialized = "Memory not initialized."
)

// ErrMissingSourceType is returned for a record without a source type.
var ErrMissingSourceType = errors.New("memory: source_type is required")

// Indexer turns records into stored chunks. It holds no mutable state and is
// safe for concurrent use; concurrency control is left to the VectorStore.
type Indexer struct {
	chunker *Chunker
	store   VectorStore
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewIndexer returns an Indexer writing to store. A nil chunker uses the
// default 900/200 windows.
func NewIndexer(store VectorStore, chunker *Chunker, logger *slog.Logger) *Indexer {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunker: chunker,
		store:   store,
		logger:  logger,
		now:     time.Now,
		newID:   randomSuffix,
	}
}

// randomSuffix is 128 bits of randomness rendered as 32 hex digits.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Index chunks r.Body and writes every chunk to the store in one batch.
// It never returns an error directly; failures are reported in the Result.
// Indexing the same record twice stores a second, independent set of
// chunks.
func (ix *Indexer) Index(ctx context.Context, r Record) Result {
	if ix == nil || ix.store == nil {
		return failedResult(MsgNotInitialized, errors.New("memory: indexer has no store"))
	}

	body := strings.TrimSpace(r.Body)
	if body == "" {
		return emptyResult(MsgNothingToIndex)
	}
	r.SourceType = strings.TrimSpace(r.SourceType)
	if r.SourceType == "" {
		return failedResult("❌ Indexing failed: "+ErrMissingSourceType.Error(), ErrMissingSourceType)
	}

	chunks := ix.chunker.Chunk(body)
	if len(chunks) == 0 {
		return emptyResult(MsgNoChunks)
	}

	base := baseMetadata(r, ix.now())
	suffix := ix.newID()
	entries := make([]Entry, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		meta := copyMeta(base)
		meta[MetaChunkIndex] = strconv.Itoa(i)
		ids[i] = fmt.Sprintf("%s_%s_%d", r.SourceType, suffix, i)
		entries[i] = Entry{ID: ids[i], Document: c, Metadata: meta}
	}

	if err := ix.store.Upsert(ctx, entries); err != nil {
		ix.logger.Error("indexing failed",
			"source_type", r.SourceType,
			"title", r.Title,
			"chunks", len(chunks),
			"err", err,
		)
		return failedResult("❌ Indexing failed: "+err.Error(), err)
	}

	ix.logger.Info("indexed record",
		"source_type", r.SourceType,
		"title", r.Title,
		"chunks", len(chunks),
	)
	res := okResult(fmt.Sprintf("✅ Indexed %d chunks of %s '%s' into memory.", len(chunks), r.SourceType, r.Title))
	res.Chunks = len(chunks)
	res.IDs = ids
	return res
}
