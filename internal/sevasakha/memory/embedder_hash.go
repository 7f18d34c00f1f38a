package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimensions is the vector length of HashEmbedder.
const DefaultHashDimensions = 384

// HashEmbedder is a deterministic, offline Embedder. Each lowercase word is
// hashed (FNV-1a) into a signed bucket and the result is L2-normalised, so
// texts sharing words score higher under cosine similarity. It needs no
// network and is used for tests and the "hash" development mode.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder. dims <= 0 selects 384.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dimensions: dims}
}

// Dimensions returns the embedding size.
func (h *HashEmbedder) Dimensions() int { return h.dimensions }

// Embed returns one vector per text. It never fails.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		sum := hash64(w)
		bucket := int(sum % uint64(h.dimensions))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	if len(words) == 0 {
		// No words: derive a stable pseudo-random vector from the raw text.
		seed := hash64(text)
		for i := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
		}
	}
	return normalize(vec)
}

func hash64(s string) uint64 {
	f := fnv.New64a()
	f.Write([]byte(s))
	return f.Sum64()
}

// normalize scales vec to unit length in place and returns it.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

// Compile-time interface satisfaction check.
var _ Embedder = (*HashEmbedder)(nil)
