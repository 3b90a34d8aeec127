// Package stream decodes server-sent event bodies from the chat stream
// endpoint into typed events.
package stream

import (
	"bytes"
	"strings"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// ErrUnexpectedEnd is the error message for a body that closes without
	// a terminal frame or the [DONE] sentinel.
	ErrUnexpectedEnd = "stream ended unexpectedly"
)

// Decoder turns chunks of an SSE body into StreamEvents. Chunks may split
// lines anywhere; the emitted sequence only depends on the bytes.
//
// A Decoder holds state for one response and is not safe for concurrent use.
type Decoder struct {
	buf        []byte
	terminated bool
	sentinel   bool
	logger     *logger.Logger
}

// NewDecoder creates a decoder. A nil logger discards skipped-frame logs.
func NewDecoder(log *logger.Logger) *Decoder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Decoder{logger: log}
}

// Feed consumes a chunk and returns the events completed by it. Once a
// terminal event has been returned, Feed returns nothing.
func (d *Decoder) Feed(chunk []byte) []types.StreamEvent {
	if d.terminated {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []types.StreamEvent
	for !d.terminated {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		if ev, ok := d.line(line); ok {
			events = append(events, ev)
		}
	}
	if d.terminated {
		d.buf = nil
	} else if len(d.buf) == 0 {
		// drop the consumed backing array instead of growing forever
		d.buf = d.buf[:0:0]
	}
	return events
}

// Finish is called at a clean end of the body. It decodes a trailing line
// without a newline and then closes the sequence: done after the [DONE]
// sentinel, an error otherwise.
func (d *Decoder) Finish() []types.StreamEvent {
	if d.terminated {
		return nil
	}
	var events []types.StreamEvent
	if len(d.buf) > 0 {
		line := string(d.buf)
		d.buf = nil
		if ev, ok := d.line(line); ok {
			events = append(events, ev)
		}
	}
	if !d.terminated {
		d.terminated = true
		if d.sentinel {
			events = append(events, types.DoneEvent(nil))
		} else {
			events = append(events, types.ErrorEvent(ErrUnexpectedEnd))
		}
	}
	return events
}

// Fail ends the sequence with an error event, unless it already ended.
func (d *Decoder) Fail(message string) []types.StreamEvent {
	if d.terminated {
		return nil
	}
	d.terminated = true
	d.buf = nil
	return []types.StreamEvent{types.ErrorEvent(message)}
}

// Terminated reports whether a terminal event has been produced
func (d *Decoder) Terminated() bool {
	return d.terminated
}

func (d *Decoder) line(raw string) (types.StreamEvent, bool) {
	raw = strings.TrimSuffix(raw, "\r")
	if !strings.HasPrefix(raw, dataPrefix) {
		return types.StreamEvent{}, false
	}
	payload := strings.TrimSpace(raw[len(dataPrefix):])
	if payload == "" {
		return types.StreamEvent{}, false
	}
	if payload == doneSentinel {
		d.sentinel = true
		d.terminated = true
		return types.DoneEvent(nil), true
	}

	ev, ok := d.parse(payload)
	if ok && ev.IsTerminal() {
		d.terminated = true
	}
	return ev, ok
}

func (d *Decoder) parse(payload string) (types.StreamEvent, bool) {
	if !gjson.Valid(payload) {
		d.logger.Warn("skipping malformed stream frame", zap.String("payload", payload))
		return types.StreamEvent{}, false
	}
	frame := gjson.Parse(payload)
	if !frame.IsObject() {
		d.logger.Warn("skipping non-object stream frame", zap.String("payload", payload))
		return types.StreamEvent{}, false
	}

	kind, ok := types.ParseEventKind(frame.Get("type").String())
	if !ok {
		d.logger.Debug("skipping unknown stream frame type", zap.String("type", frame.Get("type").String()))
		return types.StreamEvent{}, false
	}

	ev := types.StreamEvent{
		Kind:    kind,
		Content: frame.Get("content").String(),
	}
	if md := frame.Get("metadata"); md.IsObject() {
		if m, ok := md.Value().(map[string]any); ok {
			ev.Metadata = types.NormalizeMap(m)
		}
	}
	if kind == types.EventError {
		ev.ErrorMessage = frame.Get("message").String()
		if ev.ErrorMessage == "" {
			ev.ErrorMessage = ev.Content
		}
		if ev.ErrorMessage == "" {
			ev.ErrorMessage = "Unknown error"
		}
	}
	return ev, true
}

// DecodeAll decodes a complete body in one call
func DecodeAll(body []byte, log *logger.Logger) []types.StreamEvent {
	d := NewDecoder(log)
	events := d.Feed(body)
	return append(events, d.Finish()...)
}

// CleanErrorMessage strips the "Exception: " prefixes error values tend to
// accumulate when wrapped for display.
func CleanErrorMessage(message string) string {
	message = strings.TrimSpace(message)
	for strings.HasPrefix(message, "Exception: ") {
		message = strings.TrimSpace(strings.TrimPrefix(message, "Exception: "))
	}
	if message == "" {
		return "Unknown error"
	}
	return message
}
