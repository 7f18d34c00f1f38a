package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
)

// ScopeAll disables the source_type filter.
const ScopeAll = "all"

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 8

const (
	qaTemperature = 0.2
	qaMaxTokens   = 500
)

// Messages returned by Ask.
const (
	MsgEmptyQuestion = "Please enter a question."
)

// QAConfig configures a QA engine.
type QAConfig struct {
	// TopK is the number of chunks retrieved per question. Zero uses
	// DefaultTopK.
	TopK int
	// Model overrides the provider's default chat model.
	Model  string
	Logger *slog.Logger
}

// QA answers questions from stored memory with one chat completion.
type QA struct {
	store    VectorStore
	provider llm.Provider
	topK     int
	model    string
	logger   *slog.Logger
}

// NewQA returns a QA engine over store using provider for synthesis.
func NewQA(store VectorStore, provider llm.Provider, cfg QAConfig) *QA {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QA{
		store:    store,
		provider: provider,
		topK:     cfg.TopK,
		model:    cfg.Model,
		logger:   cfg.Logger,
	}
}

// ScopeFilter returns the metadata filter for scope, or nil for "all" and
// the empty scope.
func ScopeFilter(scope string) map[string]string {
	scope = strings.TrimSpace(scope)
	if scope == "" || scope == ScopeAll {
		return nil
	}
	return map[string]string{MetaSourceType: scope}
}

// NoMatchMessage is returned when a scope has no relevant chunks.
func NoMatchMessage(scope string) string {
	return fmt.Sprintf("No relevant memory found for '%s' scope. Please ensure you have indexed data in this category.", scope)
}

// BuildContext renders matches as the labelled context block sent to the
// model. Results are numbered from 1.
func BuildContext(matches []Match) string {
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "--- Result %d (Category: %s, Title: %s) ---\n%s\n\n",
			i+1, m.SourceType(), m.Title(), m.Document)
	}
	return b.String()
}

// BuildPrompt returns the user message for question q over context block.
func BuildPrompt(q, contextBlock string) string {
	return fmt.Sprintf("Based on the following context, please answer the question: %s\n\nContext:\n%s\n\nAnswer:", q, contextBlock)
}

// Ask answers q from the chunks matching scope ("all" for every category).
// A blank question returns immediately without touching the store or the
// model; an empty match set returns without a chat call. No step is
// retried.
func (qa *QA) Ask(ctx context.Context, q, scope string) Result {
	if qa == nil || qa.store == nil {
		return failedResult(MsgNotInitialized, fmt.Errorf("memory: qa engine has no store"))
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return emptyResult(MsgEmptyQuestion)
	}
	if strings.TrimSpace(scope) == "" {
		scope = ScopeAll
	}

	matches, err := qa.store.Query(ctx, Query{Text: q, TopK: qa.topK, Where: ScopeFilter(scope)})
	if err != nil {
		qa.logger.Error("memory search failed", "scope", scope, "err", err)
		return failedResult("Memory search failed: "+err.Error(), err)
	}
	if len(matches) == 0 {
		return emptyResult(NoMatchMessage(scope))
	}

	if qa.provider == nil {
		return failedResult(llm.Describe(llm.ErrMissingAPIKey), llm.ErrMissingAPIKey)
	}
	resp, err := qa.provider.Complete(ctx, llm.CompletionRequest{
		Model: qa.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.AssistantPersona},
			{Role: llm.RoleUser, Content: BuildPrompt(q, BuildContext(matches))},
		},
		Temperature: qaTemperature,
		MaxTokens:   qaMaxTokens,
	})
	if err != nil {
		qa.logger.Warn("answer synthesis failed", "scope", scope, "matches", len(matches), "err", err)
		res := failedResult(llm.Describe(err), err)
		res.Matches = matches
		return res
	}

	qa.logger.Debug("answered question", "scope", scope, "matches", len(matches))
	res := okResult(resp.Content)
	res.Matches = matches
	return res
}
