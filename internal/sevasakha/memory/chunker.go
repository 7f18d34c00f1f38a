package memory

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultChunkSize is the window length in characters.
	DefaultChunkSize = 900
	// DefaultChunkOverlap is how many characters adjacent windows share.
	DefaultChunkOverlap = 200
)

// ErrInvalidChunking is returned when size and overlap would not advance the
// window.
var ErrInvalidChunking = errors.New("memory: chunk size must be greater than overlap and overlap must not be negative")

// Chunker splits text into fixed-size overlapping windows. Lengths are
// counted in runes so a multi-byte character is never cut in half; there is
// no sentence or word awareness.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates size > overlap >= 0 and returns a Chunker.
func NewChunker(size, overlap int) (*Chunker, error) {
	if err := ValidateChunking(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// DefaultChunker returns a Chunker with the 900/200 defaults.
func DefaultChunker() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// ValidateChunking reports whether size and overlap form a terminating
// window configuration.
func ValidateChunking(size, overlap int) error {
	if size <= 0 || overlap < 0 || size <= overlap {
		return fmt.Errorf("%w (size=%d, overlap=%d)", ErrInvalidChunking, size, overlap)
	}
	return nil
}

// Size returns the window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the shared length between adjacent windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk trims text and splits it. Blank input returns nil. Every character
// of the trimmed text lands in at least one chunk, adjacent chunks share
// exactly Overlap characters, and only the last chunk may be shorter than
// Size.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	step := c.size - c.overlap

	chunks := make([]string, 0, ChunkCount(n, c.size, c.overlap))
	for start := 0; ; start += step {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// ChunkCount is the number of chunks Chunk produces for a text of n
// characters: ceil((n - overlap) / (size - overlap)), at least 1. It returns
// 0 for n <= 0.
func ChunkCount(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}
