// Package commands parses and routes "!" chat commands for the Matrix
// gateway.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"maunium.net/go/mautrix/event"
)

// DefaultPrefix starts every command.
const DefaultPrefix = "!"

// Command is a parsed chat command. Leading --flags are collected into
// Flags; everything after them is kept verbatim in Text.
type Command struct {
	Name  string
	Flags map[string]string
	// Text is the remainder after the name and leading flags, with inner
	// whitespace and newlines preserved.
	Text    string
	RawText string
}

// ErrNotACommand is returned by Parse when the message does not start with
// the prefix. Callers use errors.Is to tell it apart from real errors.
var ErrNotACommand = errors.New("not a command (missing prefix)")

// ErrUnknownCommand is wrapped by Route when no handler matches.
var ErrUnknownCommand = errors.New("unknown command")

// Handler is a function that handles a command
type Handler func(ctx context.Context, cmd *Command, evt *event.Event) (string, error)

// Router routes commands to handlers
type Router struct {
	handlers  map[string]Handler
	prefix    string
	boolFlags map[string]bool
}

// NewRouter creates a new command router
func NewRouter(prefix string) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Router{
		handlers:  make(map[string]Handler),
		prefix:    prefix,
		boolFlags: make(map[string]bool),
	}
}

// BoolFlags declares flags that never take a value, so "--index es hi"
// leaves "es hi" in Text.
func (r *Router) BoolFlags(names ...string) {
	for _, n := range names {
		r.boolFlags[n] = true
	}
}

// Register registers a command handler
func (r *Router) Register(command string, handler Handler) {
	r.handlers[command] = handler
}

// Parse parses a message into a command
func (r *Router) Parse(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, r.prefix) {
		return nil, ErrNotACommand
	}

	rest := strings.TrimPrefix(text, r.prefix)
	name, rest := nextToken(rest)
	if name == "" {
		return nil, fmt.Errorf("empty command")
	}

	cmd := &Command{
		Name:    strings.ToLower(name),
		Flags:   make(map[string]string),
		RawText: text,
	}

	for {
		trimmed := strings.TrimLeft(rest, " \t\n")
		if !strings.HasPrefix(trimmed, "--") {
			rest = trimmed
			break
		}
		tok, after := nextToken(trimmed)
		flag := strings.TrimPrefix(tok, "--")
		if k, v, ok := strings.Cut(flag, "="); ok {
			cmd.Flags[k] = v
			rest = after
			continue
		}
		val, afterVal := nextToken(after)
		if r.boolFlags[flag] || val == "" || strings.HasPrefix(val, "--") {
			cmd.Flags[flag] = "true"
			rest = after
			continue
		}
		cmd.Flags[flag] = val
		rest = afterVal
	}
	cmd.Text = strings.TrimSpace(rest)
	return cmd, nil
}

// nextToken splits off the first whitespace-delimited token of s.
func nextToken(s string) (tok, rest string) {
	s = strings.TrimLeft(s, " \t\n")
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// Route parses and routes a command to its handler
func (r *Router) Route(ctx context.Context, text string, evt *event.Event) (string, error) {
	cmd, err := r.Parse(text)
	if err != nil {
		return "", err
	}
	handler, ok := r.handlers[cmd.Name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	return handler(ctx, cmd, evt)
}

// GetFlag returns a flag value with a default
func (c *Command) GetFlag(name, defaultValue string) string {
	if val, ok := c.Flags[name]; ok {
		return val
	}
	return defaultValue
}

// HasFlag checks if a flag is present
func (c *Command) HasFlag(name string) bool {
	_, ok := c.Flags[name]
	return ok
}
