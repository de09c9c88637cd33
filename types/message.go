package types

import "strings"

// Role represents the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleModel is the wire name clients store for assistant turns.
	RoleModel Role = "model"
)

// Normalize folds the accepted aliases into user or assistant.
// Unknown roles are returned unchanged.
func (r Role) Normalize() Role {
	switch Role(strings.ToLower(strings.TrimSpace(string(r)))) {
	case RoleUser:
		return RoleUser
	case RoleAssistant, RoleModel:
		return RoleAssistant
	default:
		return r
	}
}

// Speaker returns the label used when a turn is flattened into context.
func (r Role) Speaker() string {
	if r.Normalize() == RoleAssistant {
		return "Assistant"
	}
	return "User"
}

// ContentPart is a tagged union: exactly one of Text or Image is set.
type ContentPart struct {
	Text  *string `json:"text,omitempty"`
	Image *string `json:"image,omitempty"`
}

// TextPart builds a text content part.
func TextPart(s string) ContentPart {
	return ContentPart{Text: &s}
}

// ImagePart builds an image content part holding a URL or data URI.
func ImagePart(ref string) ContentPart {
	return ContentPart{Image: &ref}
}

// IsText reports whether the part carries text.
func (p ContentPart) IsText() bool {
	return p.Text != nil
}

// ConversationTurn is one stored exchange of a caller-owned history.
type ConversationTurn struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// NewTextTurn creates a single-part text turn.
func NewTextTurn(role Role, text string) ConversationTurn {
	return ConversationTurn{Role: role, Parts: []ContentPart{TextPart(text)}}
}
