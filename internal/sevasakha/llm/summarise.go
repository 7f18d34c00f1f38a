package llm

import (
	"context"
	"fmt"
	"strings"
)

// AssistantPersona is the system prompt shared by question answering and
// document summaries.
const AssistantPersona = "You are Seva-Sakha, an executive assistant for the CEO. Be concise and action oriented. Use the provided context to answer questions accurately."

const (
	// summaryInputLimit caps how much of a document is sent, in runes.
	summaryInputLimit  = 8000
	summaryMaxTokens   = 500
	summaryTemperature = 0.2
)

// Summariser produces the executive summary shown after a document upload.
type Summariser struct {
	provider Provider
	model    string
}

// NewSummariser returns a Summariser. An empty model uses the provider's
// default.
func NewSummariser(p Provider, model string) *Summariser {
	return &Summariser{provider: p, model: model}
}

// Summarise asks for three bullets, three risks and three actions. Only the
// first 8000 characters of text are sent. Blank text yields "" without a
// network call.
func (s *Summariser) Summarise(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	resp, err := s.provider.Complete(ctx, CompletionRequest{
		Model: s.model,
		Messages: []Message{
			{Role: RoleSystem, Content: AssistantPersona},
			{Role: RoleUser, Content: "Provide executive summary (3 bullets + 3 risks + 3 actions):\n\n" + truncateRunes(text, summaryInputLimit)},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}
	return resp.Content, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
