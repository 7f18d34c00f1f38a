package commands

import (
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"

	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/assistant"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/llm"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/memory"
	"github.com/StackOverflowed512/AI-Secretary/internal/sevasakha/ratelimit"
)

const helpText = `**Seva-Sakha commands**

!ask [--scope <type>] <question>    answer from memory (scope: all, email, document, meeting, contact, task, decision, travel, message, translation)
!remember <type> <title> | <text>   store text in memory
!translate [--index] <lang> <text>  translate (es, fr, de, zh, ja, pt, ru, it, nl, ko)
!help                               show this message`

// HandlersConfig wires Handlers.
type HandlersConfig struct {
	Assistant *assistant.Assistant
	// Limiter bounds !ask per sender. Nil disables it.
	Limiter *ratelimit.Limiter
	// IndexMessages stores ordinary room messages as "message" records.
	IndexMessages bool
	// RoomName resolves a room id to a display name for message titles.
	// Nil uses the room id.
	RoomName func(roomID string) string
}

// Handlers implements the chat commands on top of the assistant.
type Handlers struct {
	assistant     *assistant.Assistant
	limiter       *ratelimit.Limiter
	indexMessages bool
	roomName      func(string) string
}

// NewHandlers returns Handlers.
func NewHandlers(cfg HandlersConfig) *Handlers {
	roomName := cfg.RoomName
	if roomName == nil {
		roomName = func(id string) string { return id }
	}
	return &Handlers{
		assistant:     cfg.Assistant,
		limiter:       cfg.Limiter,
		indexMessages: cfg.IndexMessages,
		roomName:      roomName,
	}
}

// Register adds every command to r.
func (h *Handlers) Register(r *Router) {
	r.BoolFlags("index")
	r.Register("help", h.HandleHelp)
	r.Register("ask", h.HandleAsk)
	r.Register("remember", h.HandleRemember)
	r.Register("translate", h.HandleTranslate)
}

// HandleHelp lists the commands.
func (h *Handlers) HandleHelp(_ context.Context, _ *Command, _ *event.Event) (string, error) {
	return helpText, nil
}

// HandleAsk answers a question from memory.
func (h *Handlers) HandleAsk(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	sender := evt.Sender.String()
	if strings.TrimSpace(cmd.Text) == "" {
		return memory.MsgEmptyQuestion, nil
	}
	if !h.limiter.Allow(sender) {
		return fmt.Sprintf("⏳ Rate limit reached (%d questions per minute). Please wait a moment.", h.limiter.Limit()), nil
	}
	scope := cmd.GetFlag("scope", memory.ScopeAll)
	res := h.assistant.Ask(ctx, sender, cmd.Text, scope)
	return res.String(), nil
}

// HandleRemember stores "<type> <title> | <text>" in memory.
func (h *Handlers) HandleRemember(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	sourceType, rest := nextToken(cmd.Text)
	title, text, ok := strings.Cut(rest, "|")
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	if sourceType == "" || !ok || text == "" {
		return "", fmt.Errorf("usage: !remember <type> <title> | <text>")
	}
	if title == "" {
		title = sourceType
	}
	res := h.assistant.Index(ctx, evt.Sender.String(), memory.Record{
		SourceType: strings.ToLower(sourceType),
		Title:      title,
		Body:       text,
		Extra:      map[string]any{"room": evt.RoomID.String()},
	})
	return res.String(), nil
}

// HandleTranslate translates text, optionally storing the result.
func (h *Handlers) HandleTranslate(ctx context.Context, cmd *Command, evt *event.Event) (string, error) {
	lang, text := nextToken(cmd.Text)
	text = strings.TrimSpace(text)
	if lang == "" || text == "" {
		return "", fmt.Errorf("usage: !translate [--index] <lang> <text>")
	}
	tr := h.assistant.Translate(ctx, evt.Sender.String(), text, lang, cmd.HasFlag("index"))
	reply := fmt.Sprintf("🌐 %s: %s", llm.LanguageName(lang), tr.Message)
	if tr.Err != nil {
		reply = tr.Message
	}
	if tr.Indexed != nil {
		reply += "\n" + tr.Indexed.String()
	}
	return reply, nil
}

// IndexMessage stores an ordinary (non-command) message when message
// indexing is enabled. It reports whether anything was stored.
func (h *Handlers) IndexMessage(ctx context.Context, evt *event.Event) bool {
	if !h.indexMessages || evt == nil {
		return false
	}
	msg := evt.Content.AsMessage()
	if msg == nil || strings.TrimSpace(msg.Body) == "" {
		return false
	}
	sender := evt.Sender.String()
	res := h.assistant.Index(ctx, sender, memory.MessageRecord(sender, h.roomName(evt.RoomID.String()), msg.Body))
	return res.OK()
}
