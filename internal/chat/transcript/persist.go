package transcript

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
)

// TimeLayout is the canonical timestamp format of persisted records
const TimeLayout = time.RFC3339Nano

// ToPersistable converts a session into a record of primitives, slices and
// string-keyed maps.
func ToPersistable(s types.ChatSession) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"title":       s.Title,
		"timestamp":   formatTime(s.Timestamp),
		"isImportant": s.IsImportant,
		"messages":    MessagesToPersistable(s.Messages),
	}
}

// FromPersistable rebuilds a session from a record written by ToPersistable,
// including one that went through a JSON round trip.
func FromPersistable(rec map[string]any) (types.ChatSession, error) {
	var s types.ChatSession
	var err error

	if s.ID, err = stringField(rec, "id", true); err != nil {
		return s, err
	}
	if s.Title, err = stringField(rec, "title", false); err != nil {
		return s, err
	}
	if s.Timestamp, err = timeField(rec, "timestamp"); err != nil {
		return s, err
	}
	if v, ok := rec["isImportant"]; ok && v != nil {
		b, ok := v.(bool)
		if !ok {
			return s, fmt.Errorf("transcript: isImportant is %T, want bool", v)
		}
		s.IsImportant = b
	}

	raw, _ := rec["messages"].([]any)
	if s.Messages, err = MessagesFromPersistable(raw); err != nil {
		return s, fmt.Errorf("transcript: session %s: %w", s.ID, err)
	}
	return s, nil
}

// MessagesToPersistable converts messages into records
func MessagesToPersistable(messages []types.ChatMessage) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		attachments := make([]any, len(m.AttachmentPaths))
		for i, p := range m.AttachmentPaths {
			attachments[i] = p
		}
		rec := map[string]any{
			"text":            m.Text,
			"isUser":          m.IsUser,
			"timestamp":       formatTime(m.Timestamp),
			"attachmentPaths": attachments,
		}
		if m.ThinkingContent != nil {
			rec["thinkingContent"] = *m.ThinkingContent
		}
		if m.SearchMetadata != nil {
			rec["searchMetadata"] = types.NormalizeMap(m.SearchMetadata)
		}
		out = append(out, rec)
	}
	return out
}

// MessagesFromPersistable rebuilds messages from records
func MessagesFromPersistable(records []any) ([]types.ChatMessage, error) {
	out := make([]types.ChatMessage, 0, len(records))
	for i, r := range records {
		rec, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("message %d is %T, want object", i, r)
		}

		var m types.ChatMessage
		var err error
		if m.Text, err = stringField(rec, "text", false); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		m.IsUser, _ = rec["isUser"].(bool)
		if m.Timestamp, err = timeField(rec, "timestamp"); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}

		m.AttachmentPaths = []string{}
		if paths, ok := rec["attachmentPaths"].([]any); ok {
			for _, p := range paths {
				if s, ok := p.(string); ok {
					m.AttachmentPaths = append(m.AttachmentPaths, s)
				}
			}
		}
		if thinking, ok := rec["thinkingContent"].(string); ok {
			m.ThinkingContent = &thinking
		}
		if md, ok := rec["searchMetadata"].(map[string]any); ok {
			m.SearchMetadata = types.NormalizeMap(md)
		}
		out = append(out, m)
	}
	return out, nil
}

// Marshal encodes a session record as JSON
func Marshal(s types.ChatSession) ([]byte, error) {
	return json.Marshal(ToPersistable(s))
}

// Unmarshal decodes a JSON session record
func Unmarshal(data []byte) (types.ChatSession, error) {
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.ChatSession{}, fmt.Errorf("transcript: decode session: %w", err)
	}
	return FromPersistable(rec)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func stringField(rec map[string]any, key string, required bool) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("transcript: missing %s", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("transcript: %s is %T, want string", key, v)
	}
	return s, nil
}

func timeField(rec map[string]any, key string) (time.Time, error) {
	s, err := stringField(rec, key, true)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("transcript: parse %s: %w", key, err)
	}
	return t.UTC(), nil
}
