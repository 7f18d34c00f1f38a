// Package assistant is the single entry point the HTTP API, the CLI and the
// Matrix gateway use to reach the memory core and the language helpers. It
// records every operation in the audit log under the request's trace id.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/StackOverflowed512/AI-Secretary/common/redact"
	"github.com/StackOverflowed512/AI-Secretary/common/trace"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/observability"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/store"
)

// Audit actions.
const (
	ActionIndex     = "memory.index"
	ActionAsk       = "memory.ask"
	ActionTranslate = "llm.translate"
	ActionSummarise = "llm.summarise"
)

// AuditLog is the subset of store.Store the assistant writes to.
type AuditLog interface {
	WriteAudit(ctx context.Context, rec store.AuditRecord) error
	GetAuditLog(ctx context.Context, limit int) ([]*store.AuditEntry, error)
}

// Indexer stores records in memory.
type Indexer interface {
	Index(ctx context.Context, r memory.Record) memory.Result
}

// Answerer answers questions from memory.
type Answerer interface {
	Ask(ctx context.Context, question, scope string) memory.Result
}

// Config wires an Assistant. Nil Translator or Summariser disables that
// feature; a nil Audit skips auditing.
type Config struct {
	Indexer    Indexer
	QA         Answerer
	Translator *llm.Translator
	Summariser *llm.Summariser
	Audit      AuditLog
	Logger     *slog.Logger
	// Secrets are scrubbed from audit error messages.
	Secrets []string
}

// Assistant is safe for concurrent use.
type Assistant struct {
	indexer    Indexer
	qa         Answerer
	translator *llm.Translator
	summariser *llm.Summariser
	audit      AuditLog
	logger     *slog.Logger
	secrets    []string
}

// New returns an Assistant.
func New(cfg Config) *Assistant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Assistant{
		indexer:    cfg.Indexer,
		qa:         cfg.QA,
		translator: cfg.Translator,
		summariser: cfg.Summariser,
		audit:      cfg.Audit,
		logger:     cfg.Logger,
		secrets:    cfg.Secrets,
	}
}

// Index stores r in memory on behalf of actor.
func (a *Assistant) Index(ctx context.Context, actor string, r memory.Record) memory.Result {
	ctx, _ = trace.Ensure(ctx)
	var res memory.Result
	if a.indexer == nil {
		res = memory.Result{Kind: memory.KindFailed, Message: memory.MsgNotInitialized}
	} else {
		res = a.indexer.Index(ctx, r)
	}
	payload := make(store.AuditPayload, len(r.Extra)+2)
	for k, v := range r.Extra {
		payload[k] = v
	}
	payload["title"] = r.Title
	payload["chunks"] = res.Chunks
	a.record(ctx, actor, ActionIndex, strings.TrimSpace(r.SourceType), res.Kind, res.Err, payload)
	return res
}

// Ask answers question from memory restricted to scope.
func (a *Assistant) Ask(ctx context.Context, actor, question, scope string) memory.Result {
	ctx, _ = trace.Ensure(ctx)
	if strings.TrimSpace(scope) == "" {
		scope = memory.ScopeAll
	}
	var res memory.Result
	if a.qa == nil {
		res = memory.Result{Kind: memory.KindFailed, Message: memory.MsgNotInitialized}
	} else {
		res = a.qa.Ask(ctx, question, scope)
	}
	a.record(ctx, actor, ActionAsk, scope, res.Kind, res.Err, store.AuditPayload{
		"question": question,
		"matches":  len(res.Matches),
	})
	return res
}

// Translation is the outcome of Translate.
type Translation struct {
	// Text is the translated text, empty on failure.
	Text string
	// Message is what to show the user: the translation or an error line.
	Message string
	Err     error
	// Indexed is set when the translation was also stored in memory.
	Indexed *memory.Result
}

// Translate renders text in lang. When index is true a successful
// translation is stored as a "translation" record.
func (a *Assistant) Translate(ctx context.Context, actor, text, lang string, index bool) Translation {
	ctx, _ = trace.Ensure(ctx)
	if a.translator == nil {
		err := fmt.Errorf("assistant: %w", llm.ErrMissingAPIKey)
		return Translation{Message: llm.DescribeTranslateError(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return Translation{Message: "Please enter text to translate."}
	}

	out, err := a.translator.Translate(ctx, text, lang)
	kind := memory.KindOK
	if err != nil {
		kind = memory.KindFailed
	}
	a.record(ctx, actor, ActionTranslate, llm.LanguageName(lang), kind, err, store.AuditPayload{
		"chars": len([]rune(text)),
	})
	if err != nil {
		return Translation{Message: llm.DescribeTranslateError(err), Err: err}
	}

	t := Translation{Text: out, Message: out}
	if index && out != "" {
		res := a.Index(ctx, actor, memory.TranslationRecord(llm.LanguageName(lang), text, out))
		t.Indexed = &res
	}
	return t
}

// Summary is the outcome of Summarise.
type Summary struct {
	Text    string
	Message string
	Err     error
	// Indexed is set when the document was stored in memory first.
	Indexed *memory.Result
}

// Summarise produces an executive summary of a document. When index is true
// the document is stored as a "document" record under title before the
// summary is requested, as an upload would.
func (a *Assistant) Summarise(ctx context.Context, actor, title, text string, index bool) Summary {
	ctx, _ = trace.Ensure(ctx)
	var s Summary
	if index {
		res := a.Index(ctx, actor, memory.DocumentRecord(title, text))
		s.Indexed = &res
	}
	if a.summariser == nil {
		s.Err = fmt.Errorf("assistant: %w", llm.ErrMissingAPIKey)
		s.Message = llm.Describe(s.Err)
		return s
	}

	out, err := a.summariser.Summarise(ctx, text)
	kind := memory.KindOK
	if err != nil {
		kind = memory.KindFailed
	} else if out == "" {
		kind = memory.KindEmpty
	}
	a.record(ctx, actor, ActionSummarise, title, kind, err, nil)
	if err != nil {
		s.Err = err
		s.Message = llm.Describe(err)
		return s
	}
	s.Text = out
	s.Message = out
	return s
}

// History returns the newest audit entries first.
func (a *Assistant) History(ctx context.Context, limit int) ([]*store.AuditEntry, error) {
	if a.audit == nil {
		return nil, nil
	}
	return a.audit.GetAuditLog(ctx, limit)
}

// record writes an audit entry. Payload values under secret-looking keys
// are replaced before storage. Audit failures are logged and never fail
// the operation.
func (a *Assistant) record(ctx context.Context, actor, action, target string, kind memory.Kind, opErr error, payload store.AuditPayload) {
	log := observability.WithTrace(ctx, a.logger)
	log.Info("assistant operation", "actor", actor, "action", action, "target", target, "result", kind.String())
	if a.audit == nil {
		return
	}
	rec := store.AuditRecord{
		TraceID: trace.FromContext(ctx),
		Actor:   actor,
		Action:  action,
		Target:  target,
		Result:  auditResult(kind),
		Payload: redact.Map(payload),
	}
	if opErr != nil {
		rec.Error = redact.Error(opErr, a.secrets...)
	}
	if err := a.audit.WriteAudit(ctx, rec); err != nil {
		log.Warn("failed to write audit entry", "action", action, "err", err)
	}
}

func auditResult(k memory.Kind) string {
	switch k {
	case memory.KindOK:
		return store.ResultOK
	case memory.KindEmpty:
		return store.ResultEmpty
	default:
		return store.ResultFailed
	}
}
