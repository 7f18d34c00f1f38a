package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/StackOverflowed512/AI-Secretary/common/version"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
)

const (
	defaultEmbeddingBase    = llm.DefaultBaseURL
	defaultEmbeddingModel   = "mistral-embed"
	defaultEmbeddingTimeout = 30 * time.Second
)

// OpenAIEmbedderConfig configures the OpenAI-compatible embedding client.
type OpenAIEmbedderConfig struct {
	// APIKey is the bearer token. Empty makes every non-empty call fail with
	// llm.ErrMissingAPIKey before touching the network.
	APIKey string

	// BaseURL is the API root; "/embeddings" is appended.
	// Defaults to https://api.mistral.ai/v1.
	BaseURL string

	// Model defaults to mistral-embed.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// OpenAIEmbedder implements Embedder with one batched /embeddings request
// per call. It is safe for concurrent use.
type OpenAIEmbedder struct {
	cfg    OpenAIEmbedderConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an Embedder backed by an OpenAI-compatible
// embeddings API.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultEmbeddingBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmbeddingTimeout
	}
	return &OpenAIEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string { return e.cfg.Model }

// --- embeddings wire types ---

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     *int      `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Embed sends every text in one request and returns the vectors in input
// order. When the response items carry an index field they are placed by it;
// otherwise they are taken positionally.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder openai: %w", llm.ErrMissingAPIKey)
	}

	data, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/embeddings",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedder openai: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("embedder openai: %w", &llm.APIError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("embedder openai: decode response: %w", err)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder openai: %w", errEmbeddingCount(len(texts), len(embResp.Data)))
	}

	out := make([][]float32, len(texts))
	for i, d := range embResp.Data {
		pos := i
		if d.Index != nil {
			pos = *d.Index
		} else if indexed(embResp.Data) {
			return nil, fmt.Errorf("embedder openai: response item %d has no index", i)
		}
		if pos < 0 || pos >= len(texts) || out[pos] != nil {
			return nil, fmt.Errorf("embedder openai: invalid or repeated response index %d", pos)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embedder openai: empty embedding at index %d", pos)
		}
		out[pos] = d.Embedding
	}
	return out, nil
}

// indexed reports whether any item carries an explicit index. Items without
// one are taken in response order.
func indexed(data []embeddingData) bool {
	for _, d := range data {
		if d.Index != nil {
			return true
		}
	}
	return false
}

// Compile-time interface satisfaction check.
var _ Embedder = (*OpenAIEmbedder)(nil)
