// Package llm is the chat-completion side of the assistant: an
// OpenAI-compatible provider (Mistral by default) plus the translator and
// document summariser built on it.
//
// Calls are single-shot. There are no retries; a transport failure or a
// non-2xx status is returned to the caller immediately.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Role is the role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a single chat completion.
type CompletionRequest struct {
	// Model overrides the provider's default model when non-empty.
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the first choice returned by the model.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
}

// TokenUsage reports token consumption.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is implemented by chat-completion backends.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrMissingAPIKey is returned before any network call when no credential is
// configured.
var ErrMissingAPIKey = errors.New("llm: API key not configured")

// ErrNoChoices is returned when a 2xx response carries no choices.
var ErrNoChoices = errors.New("llm: no choices in response")

// APIError is a non-2xx answer from the remote service. Body is the raw
// response body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// Describe renders a completion error the way it is shown to users.
func Describe(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAPIKey):
		return "❌ Error: MISTRAL_API_KEY not found"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("❌ Mistral API Error: %d - %s", apiErr.StatusCode, apiErr.Body)
	default:
		return "❌ LLM Call Failed: " + err.Error()
	}
}
