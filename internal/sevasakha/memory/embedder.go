// Package memory is the retrieval core: it chunks record text, embeds the
// chunks, stores them with metadata in a vector store, and answers questions
// from the closest matches.
package memory

import "context"

// Embedder converts texts into vectors, one per input, in input order.
//
// An empty input returns (nil, nil). Any failure (missing credentials,
// transport error, non-2xx status, short response) returns a non-nil error,
// so "nothing to embed" and "embedding failed" are never confused.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// embedOne embeds a single text and returns its vector.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errEmbeddingCount(1, len(vecs))
	}
	return vecs[0], nil
}
