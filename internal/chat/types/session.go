package types

import "time"

// ChatSession is a persisted conversation
type ChatSession struct {
	ID          string
	Title       string
	Messages    []ChatMessage
	Timestamp   time.Time
	IsImportant bool
}

// Clone returns a deep copy of the session
func (s ChatSession) Clone() ChatSession {
	out := s
	out.Messages = make([]ChatMessage, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// FirstUserText returns the text of the first user turn, or ""
func (s ChatSession) FirstUserText() string {
	for _, m := range s.Messages {
		if m.IsUser {
			return m.Text
		}
	}
	return ""
}
