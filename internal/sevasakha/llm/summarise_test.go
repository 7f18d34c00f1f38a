package llm

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSummariser_PromptAndTruncation(t *testing.T) {
	p := &recordingProvider{answer: "- bullet"}
	s := NewSummariser(p, "mistral-large-latest")

	long := strings.Repeat("é", 9000)
	got, err := s.Summarise(context.Background(), long)
	if err != nil {
		t.Fatalf("Summarise: %v", err)
	}
	if got != "- bullet" {
		t.Errorf("unexpected summary %q", got)
	}

	req := p.requests[0]
	if req.Model != "mistral-large-latest" || req.MaxTokens != 500 {
		t.Errorf("unexpected request params %+v", req)
	}
	if req.Messages[0].Content != AssistantPersona {
		t.Errorf("expected persona system prompt, got %q", req.Messages[0].Content)
	}
	const prefix = "Provide executive summary (3 bullets + 3 risks + 3 actions):\n\n"
	user := req.Messages[1].Content
	if !strings.HasPrefix(user, prefix) {
		t.Fatalf("unexpected user prompt prefix: %q", user[:40])
	}
	if n := utf8.RuneCountInString(strings.TrimPrefix(user, prefix)); n != 8000 {
		t.Errorf("expected 8000 runes of document, got %d", n)
	}
}

func TestSummariser_BlankText(t *testing.T) {
	p := &recordingProvider{}
	got, err := NewSummariser(p, "").Summarise(context.Background(), "\n\t")
	if err != nil || got != "" {
		t.Fatalf("expected empty summary, got %q, %v", got, err)
	}
	if len(p.requests) != 0 {
		t.Errorf("expected no calls")
	}
}
