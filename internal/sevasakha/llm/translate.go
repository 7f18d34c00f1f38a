package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Languages maps the supported ISO 639-1 codes to the language name given
// to the model.
var Languages = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"zh": "Chinese (Simplified)",
	"ja": "Japanese",
	"pt": "Portuguese",
	"ru": "Russian",
	"it": "Italian",
	"nl": "Dutch",
	"ko": "Korean",
}

const (
	translateTemperature = 0.1
	translateMaxTokens   = 1000
)

// LanguageName resolves a code through Languages. Unknown codes are returned
// unchanged so callers can pass a full language name.
func LanguageName(code string) string {
	if name, ok := Languages[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return strings.TrimSpace(code)
}

// LanguageCodes returns the supported codes in sorted order.
func LanguageCodes() []string {
	codes := make([]string, 0, len(Languages))
	for c := range Languages {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Translator turns text into another language with a single completion.
type Translator struct {
	provider Provider
	model    string
}

// NewTranslator returns a Translator. An empty model uses the provider's
// default.
func NewTranslator(p Provider, model string) *Translator {
	return &Translator{provider: p, model: model}
}

// Translate returns text rendered in lang. Blank text yields "" without a
// network call.
func (t *Translator) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	target := LanguageName(lang)
	if target == "" {
		return "", fmt.Errorf("translate: target language is required")
	}

	resp, err := t.provider.Complete(ctx, CompletionRequest{
		Model: t.model,
		Messages: []Message{
			{Role: RoleSystem, Content: fmt.Sprintf("You are a professional translator. Translate the following text to %s. Return ONLY the translation, nothing else.", target)},
			{Role: RoleUser, Content: text},
		},
		Temperature: translateTemperature,
		MaxTokens:   translateMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// DescribeTranslateError renders a translation failure for display.
func DescribeTranslateError(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAPIKey):
		return "Error: MISTRAL_API_KEY not configured"
	case errors.As(err, &apiErr):
		return fmt.Sprintf("Translation API Error: %d", apiErr.StatusCode)
	default:
		return fmt.Sprintf("Translation failed: %v", err)
	}
}
