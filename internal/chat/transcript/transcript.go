// Package transcript holds the ordered message list of a conversation and
// folds streamed reply events into it.
package transcript

import (
	"errors"
	"strings"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
)

var (
	// ErrNotStreaming is returned by Fold when no reply is being streamed
	// and the event cannot start one.
	ErrNotStreaming = errors.New("transcript: no active streaming message")
	// ErrAlreadyStreaming is returned by Begin while a reply is in progress.
	ErrAlreadyStreaming = errors.New("transcript: a reply is already streaming")
)

// Transcript is an append-only message list with at most one assistant
// message open for streaming. Not safe for concurrent use; the session
// controller owns it.
type Transcript struct {
	messages []types.ChatMessage
	active   int // index of the streaming message, -1 when none

	thinking strings.Builder
	search   map[string]any

	now func() time.Time
}

// Option configures a Transcript
type Option func(*Transcript)

// WithClock overrides time.Now for message timestamps
func WithClock(now func() time.Time) Option {
	return func(t *Transcript) {
		t.now = now
	}
}

// New creates a transcript holding a copy of messages
func New(messages []types.ChatMessage, opts ...Option) *Transcript {
	t := &Transcript{active: -1, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	for _, m := range messages {
		t.messages = append(t.messages, m.Clone())
	}
	return t
}

// Append adds a frozen message at the end
func (t *Transcript) Append(m types.ChatMessage) {
	m = m.Clone()
	if m.Timestamp.IsZero() {
		m.Timestamp = t.now()
	}
	t.messages = append(t.messages, m)
}

// AppendUser appends a user turn stamped with the transcript clock
func (t *Transcript) AppendUser(text string, attachments ...string) types.ChatMessage {
	m := types.NewUserMessage(text, t.now(), attachments...)
	t.messages = append(t.messages, m)
	return m.Clone()
}

// Begin opens an empty assistant message as the streaming target
func (t *Transcript) Begin() error {
	if t.Streaming() {
		return ErrAlreadyStreaming
	}
	t.messages = append(t.messages, types.NewAssistantMessage("", t.now()))
	t.active = len(t.messages) - 1
	t.thinking.Reset()
	t.search = nil
	return nil
}

// Streaming reports whether an assistant message is open
func (t *Transcript) Streaming() bool {
	return t.active >= 0
}

// Fold applies one stream event to the open assistant message. It returns
// true when the event closed the message. Content and thinking events open
// a message implicitly when none is active.
func (t *Transcript) Fold(ev types.StreamEvent) (bool, error) {
	if !t.Streaming() {
		switch ev.Kind {
		case types.EventContent, types.EventThinking, types.EventSearchResults:
			if err := t.Begin(); err != nil {
				return false, err
			}
		default:
			return false, ErrNotStreaming
		}
	}

	msg := &t.messages[t.active]
	switch ev.Kind {
	case types.EventContent:
		msg.Text += ev.Content
	case types.EventThinking:
		t.thinking.WriteString(ev.Content)
	case types.EventSearchResults:
		t.search = types.NormalizeMap(ev.Metadata)
	case types.EventDone:
		t.freeze()
		return true, nil
	case types.EventError:
		if msg.Text == "" {
			msg.Text = "Error: " + ev.ErrorMessage
		}
		t.freeze()
		return true, nil
	}
	return false, nil
}

// Abort freezes the open message as is, for a consumer that stopped reading
func (t *Transcript) Abort() {
	if t.Streaming() {
		t.freeze()
	}
}

func (t *Transcript) freeze() {
	msg := &t.messages[t.active]
	thinking := t.thinking.String()
	if thinking == "" {
		if trace, rest, ok := SplitThinking(msg.Text); ok {
			thinking, msg.Text = trace, rest
		}
	}
	if thinking != "" {
		msg.ThinkingContent = &thinking
	}
	if t.search != nil {
		msg.SearchMetadata = t.search
	}
	t.active = -1
	t.thinking.Reset()
	t.search = nil
}

// Thinking returns the reasoning trace streamed so far for the open message
func (t *Transcript) Thinking() string {
	return t.thinking.String()
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns a copy of the final message
func (t *Transcript) Last() (types.ChatMessage, bool) {
	if len(t.messages) == 0 {
		return types.ChatMessage{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// Messages returns copies of all messages in order
func (t *Transcript) Messages() []types.ChatMessage {
	out := make([]types.ChatMessage, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// History returns the frozen messages to send as prior turns, leaving out
// the open streaming message.
func (t *Transcript) History() []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(t.messages))
	for i, m := range t.messages {
		if i == t.active {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// Reset drops all messages
func (t *Transcript) Reset() {
	t.messages = nil
	t.active = -1
	t.thinking.Reset()
	t.search = nil
}

// SplitThinking separates a leading <think>...</think> block from text
func SplitThinking(text string) (thinking, rest string, ok bool) {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if !strings.HasPrefix(trimmed, "<think>") {
		return "", text, false
	}
	end := strings.Index(trimmed, "</think>")
	if end < 0 {
		return "", text, false
	}
	thinking = strings.TrimSpace(trimmed[len("<think>"):end])
	rest = strings.TrimLeft(trimmed[end+len("</think>"):], " \t\r\n")
	return thinking, rest, true
}
