package types

// EventKind is the kind of a decoded stream event
type EventKind string

const (
	EventThinking      EventKind = "thinking"
	EventContent       EventKind = "content"
	EventSearchResults EventKind = "search_results"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// ParseEventKind maps a frame's type field to an EventKind
func ParseEventKind(s string) (EventKind, bool) {
	switch k := EventKind(s); k {
	case EventThinking, EventContent, EventSearchResults, EventDone, EventError:
		return k, true
	}
	return "", false
}

// StreamEvent is one decoded unit of a streaming reply
type StreamEvent struct {
	Kind         EventKind
	Content      string
	Metadata     map[string]any
	ErrorMessage string
}

// IsTerminal reports whether no event may follow this one
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// ErrorEvent builds a terminal error event
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, ErrorMessage: message}
}

// DoneEvent builds a terminal done event
func DoneEvent(metadata map[string]any) StreamEvent {
	return StreamEvent{Kind: EventDone, Metadata: metadata}
}
