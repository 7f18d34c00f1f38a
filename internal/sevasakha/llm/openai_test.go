package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestOpenAIProvider_SatisfiesInterface(t *testing.T) {
	var _ Provider = NewOpenAI(OpenAIConfig{APIKey: "test-key"})
}

func TestOpenAIProvider_Defaults(t *testing.T) {
	p := NewOpenAI(OpenAIConfig{APIKey: "k"})
	if p.Endpoint() != "https://api.mistral.ai/v1/chat/completions" {
		t.Errorf("unexpected endpoint %q", p.Endpoint())
	}
	if p.Model() != "mistral-small-latest" {
		t.Errorf("unexpected model %q", p.Model())
	}
	if p.client.Timeout != DefaultTimeout {
		t.Errorf("expected %v timeout, got %v", DefaultTimeout, p.client.Timeout)
	}

	p = NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: "http://x/v1/", ChatURL: "http://y/custom"})
	if p.Endpoint() != "http://y/custom" {
		t.Errorf("ChatURL should win, got %q", p.Endpoint())
	}
}

func TestOpenAIProvider_MissingKeyMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("expected no network call, got %d", calls)
	}
	if got := Describe(err); got != "❌ Error: MISTRAL_API_KEY not found" {
		t.Errorf("unexpected description %q", got)
	}
}

func TestOpenAIProvider_SuccessfulCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key-abc" {
			t.Errorf("unexpected Authorization: %s", r.Header.Get("Authorization"))
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "mistral-small-latest" {
			t.Errorf("unexpected model %v", req["model"])
		}
		if req["temperature"] != 0.2 {
			t.Errorf("unexpected temperature %v", req["temperature"])
		}
		if req["max_tokens"] != float64(500) {
			t.Errorf("unexpected max_tokens %v", req["max_tokens"])
		}
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(msgs))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Revenue grew 12%."},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "test-key-abc", BaseURL: srv.URL})
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: AssistantPersona},
			{Role: RoleUser, Content: "How did revenue change?"},
		},
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "Revenue grew 12%." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.FinishReason != "stop" || resp.Usage.TotalTokens != 14 {
		t.Errorf("unexpected metadata %+v", resp)
	}
}

func TestOpenAIProvider_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "bad-key", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected status %d", apiErr.StatusCode)
	}
	want := `❌ Mistral API Error: 401 - {"message":"Unauthorized"}`
	if got := Describe(err); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrNoChoices) {
		t.Fatalf("expected ErrNoChoices, got %v", err)
	}
	if got := Describe(err); !strings.HasPrefix(got, "❌ LLM Call Failed: ") {
		t.Errorf("unexpected description %q", got)
	}
}

func TestOpenAIProvider_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	if _, err := p.Complete(context.Background(), CompletionRequest{}); err == nil {
		t.Fatal("expected error for malformed JSON response")
	}
}

func TestOpenAIProvider_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: url})
	_, err := p.Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if got := Describe(err); !strings.HasPrefix(got, "❌ LLM Call Failed: ") {
		t.Errorf("unexpected description %q", got)
	}
}

func TestDescribe_Nil(t *testing.T) {
	if got := Describe(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
