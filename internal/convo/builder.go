// Package convo flattens caller-owned conversation history into the text
// context submitted to a provider.
package convo

import (
	"strings"

	"github.com/BaSui01/aihub/types"
)

// Default truncation limits. Multimodal turns are token-heavier, so the
// image path keeps fewer of them.
const (
	DefaultTextChatTurns       = 10
	DefaultMultimodalChatTurns = 5
	DefaultMaxContextLines     = 20
)

// Limits configures the two-stage truncation.
type Limits struct {
	TextChatTurns       int `yaml:"text_chat_turns" json:"text_chat_turns"`
	MultimodalChatTurns int `yaml:"multimodal_chat_turns" json:"multimodal_chat_turns"`
	MaxContextLines     int `yaml:"max_context_lines" json:"max_context_lines"`
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		TextChatTurns:       DefaultTextChatTurns,
		MultimodalChatTurns: DefaultMultimodalChatTurns,
		MaxContextLines:     DefaultMaxContextLines,
	}
}

// Context is the flattened, truncated conversation.
type Context struct {
	Lines []string

	// DroppedParts counts non-text parts skipped while flattening the
	// retained turns. History images are never re-submitted.
	DroppedParts int
}

// Text joins the context lines for submission.
func (c Context) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Empty reports whether there is nothing to submit.
func (c Context) Empty() bool {
	return len(c.Lines) == 0
}

// Builder assembles contexts. It holds no mutable state and is safe for
// concurrent use.
type Builder struct {
	limits Limits
}

// NewBuilder creates a builder. Zero limits fall back to the defaults;
// negative turn limits disable history.
func NewBuilder(limits Limits) *Builder {
	def := DefaultLimits()
	if limits.TextChatTurns == 0 {
		limits.TextChatTurns = def.TextChatTurns
	}
	if limits.MultimodalChatTurns == 0 {
		limits.MultimodalChatTurns = def.MultimodalChatTurns
	}
	if limits.MaxContextLines <= 0 {
		limits.MaxContextLines = def.MaxContextLines
	}
	return &Builder{limits: limits}
}

// Limits returns the effective limits.
func (b *Builder) Limits() Limits {
	return b.limits
}

// TextChat builds the context for a text-only chat turn.
func (b *Builder) TextChat(history []types.ConversationTurn, message string) Context {
	return b.Build(history, message, b.limits.TextChatTurns)
}

// MultimodalChat builds the context for a chat turn that may carry an image.
func (b *Builder) MultimodalChat(history []types.ConversationTurn, message string) Context {
	return b.Build(history, message, b.limits.MultimodalChatTurns)
}

// Build keeps the last turnLimit turns, flattens their text parts in order,
// appends the new message when it is non-empty, then keeps the last
// MaxContextLines lines.
func (b *Builder) Build(history []types.ConversationTurn, message string, turnLimit int) Context {
	var ctx Context

	for _, turn := range lastTurns(history, turnLimit) {
		speaker := turn.Role.Speaker()
		for _, part := range turn.Parts {
			if !part.IsText() {
				ctx.DroppedParts++
				continue
			}
			ctx.Lines = append(ctx.Lines, speaker+": "+*part.Text)
		}
	}

	if strings.TrimSpace(message) != "" {
		ctx.Lines = append(ctx.Lines, types.RoleUser.Speaker()+": "+message)
	}

	if n := len(ctx.Lines); n > b.limits.MaxContextLines {
		ctx.Lines = ctx.Lines[n-b.limits.MaxContextLines:]
	}
	return ctx
}

func lastTurns(history []types.ConversationTurn, limit int) []types.ConversationTurn {
	if limit <= 0 {
		return nil
	}
	if len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}
