package memory

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// DefaultEmbeddingCacheBytes bounds the vector cache at roughly 64 MiB.
const DefaultEmbeddingCacheBytes = 64 << 20

// CachingEmbedder memoises another Embedder's vectors in a ristretto cache,
// keyed by namespace and exact text. Misses within one call are sent to the
// wrapped Embedder as a single batch.
type CachingEmbedder struct {
	next      Embedder
	namespace string
	cache     *ristretto.Cache
}

// NewCachingEmbedder wraps next. namespace separates models sharing a cache
// key space (use the model name); maxBytes <= 0 selects the default budget.
func NewCachingEmbedder(next Embedder, namespace string, maxBytes int64) (*CachingEmbedder, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultEmbeddingCacheBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder cache: %w", err)
	}
	return &CachingEmbedder{next: next, namespace: namespace, cache: cache}, nil
}

// Embed serves hits from the cache and fetches all misses in one call.
func (c *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			if vec, ok := v.([]float32); ok {
				out[i] = append([]float32(nil), vec...)
				continue
			}
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, errEmbeddingCount(len(missTexts), len(vecs))
	}
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		c.cache.Set(c.key(missTexts[j]), append([]float32(nil), vec...), int64(4*len(vec)))
	}
	return out, nil
}

// Wait blocks until pending cache writes are visible.
func (c *CachingEmbedder) Wait() { c.cache.Wait() }

// Close releases the cache's background goroutines.
func (c *CachingEmbedder) Close() { c.cache.Close() }

func (c *CachingEmbedder) key(text string) string {
	return c.namespace + "\x00" + text
}

// Compile-time interface satisfaction check.
var _ Embedder = (*CachingEmbedder)(nil)
