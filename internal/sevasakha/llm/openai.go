package llm

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
)

const (
	// DefaultBaseURL is the Mistral API root; any OpenAI-compatible root works.
	DefaultBaseURL = "https://api.mistral.ai/v1"
	// DefaultChatModel is used when neither the config nor the request names one.
	DefaultChatModel = "mistral-small-latest"
	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 30 * time.Second
)

// OpenAIConfig configures the OpenAI-compatible chat adapter.
type OpenAIConfig struct {
	// APIKey is the bearer token. An empty key makes every call fail with
	// ErrMissingAPIKey without touching the network.
	APIKey string

	// BaseURL is the API root; "/chat/completions" is appended.
	// Defaults to DefaultBaseURL.
	BaseURL string

	// ChatURL, when set, is the full completions endpoint and wins over
	// BaseURL (MISTRAL_API_URL).
	ChatURL string

	// Model is the default model. Defaults to DefaultChatModel.
	Model string

	// Timeout for each HTTP request. Defaults to 30s.
	Timeout time.Duration
}

// OpenAIProvider implements Provider using the chat completions API.
// It is safe for concurrent use.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAI returns a provider backed by an OpenAI-compatible API.
func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Endpoint is the URL completions are posted to.
func (p *OpenAIProvider) Endpoint() string {
	if p.cfg.ChatURL != "" {
		return p.cfg.ChatURL
	}
	return p.cfg.BaseURL + "/chat/completions"
}

// Model is the default model name.
func (p *OpenAIProvider) Model() string { return p.cfg.Model }

// --- wire types ---

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Complete sends one chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	data, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := chatResp.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

// Compile-time interface satisfaction check.
var _ Provider = (*OpenAIProvider)(nil)
