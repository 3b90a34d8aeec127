package types

import (
	"slices"
	"time"
)

// Roles used on the wire for history turns
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn in a conversation
type ChatMessage struct {
	Text            string
	IsUser          bool
	Timestamp       time.Time
	AttachmentPaths []string
	ThinkingContent *string
	SearchMetadata  map[string]any
}

// NewUserMessage creates a user turn stamped with now
func NewUserMessage(text string, now time.Time, attachments ...string) ChatMessage {
	return ChatMessage{
		Text:            text,
		IsUser:          true,
		Timestamp:       now,
		AttachmentPaths: append([]string{}, attachments...),
	}
}

// NewAssistantMessage creates an assistant turn stamped with now
func NewAssistantMessage(text string, now time.Time) ChatMessage {
	return ChatMessage{
		Text:            text,
		Timestamp:       now,
		AttachmentPaths: []string{},
	}
}

// Role returns the wire role of the message
func (m ChatMessage) Role() string {
	if m.IsUser {
		return RoleUser
	}
	return RoleAssistant
}

// Thinking returns the reasoning trace, or "" when there is none
func (m ChatMessage) Thinking() string {
	if m.ThinkingContent == nil {
		return ""
	}
	return *m.ThinkingContent
}

// Clone returns a deep copy so callers can't mutate a frozen message
// through shared slices or maps.
func (m ChatMessage) Clone() ChatMessage {
	out := m
	out.AttachmentPaths = slices.Clone(m.AttachmentPaths)
	if out.AttachmentPaths == nil {
		out.AttachmentPaths = []string{}
	}
	if m.ThinkingContent != nil {
		thinking := *m.ThinkingContent
		out.ThinkingContent = &thinking
	}
	if m.SearchMetadata != nil {
		out.SearchMetadata = NormalizeMap(m.SearchMetadata)
	}
	return out
}

// Turn is a chat history entry as sent to the server
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToTurns maps messages to wire history turns, preserving order
func ToTurns(messages []ChatMessage) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, Turn{Role: m.Role(), Content: m.Text})
	}
	return turns
}
