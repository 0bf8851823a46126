package chat

import (
	"fmt"
	"time"
)

// Role tags the author of a transcript entry.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// ParseRole maps a persisted role column back onto the enum.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleHuman, RoleAI, RoleSystem:
		return Role(raw), nil
	default:
		return "", fmt.Errorf("unknown message role %q", raw)
	}
}

// Label is the speaker prefix used when rendering a transcript. System messages
// have none.
func (r Role) Label() string {
	switch r {
	case RoleHuman:
		return "Human"
	case RoleAI:
		return "AI"
	case RoleSystem:
		return ""
	default:
		return ""
	}
}

// Message is a single immutable transcript entry. CreatedAt is stamped by the store
// and is informational only; slice order is the ordering guarantee.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// HumanMessage builds a user turn.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// AIMessage builds an assistant turn.
func AIMessage(content string) Message {
	return Message{Role: RoleAI, Content: content}
}

// SystemMessage builds a framing message; it is never produced by a chat turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
