package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/stream"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"go.uber.org/zap"
)

// Web search depths accepted by the stream endpoint
const (
	SearchDepthNormal = "normal"
	SearchDepthDeep   = "deep"
	SearchDepthDeeper = "deeper"
)

// maxErrorBodyBytes bounds the body read from a rejected stream
const maxErrorBodyBytes = 64 << 10

// StreamRequest is a chat request sent to the streaming endpoint
type StreamRequest struct {
	ChatRequest
	WebSearchEnabled bool
	WebSearchDepth   string
}

type streamBody struct {
	chatBody
	WebSearchEnabled bool   `json:"web_search_enabled"`
	WebSearchDepth   string `json:"web_search_depth"`
}

func validDepth(depth string) bool {
	switch depth {
	case SearchDepthNormal, SearchDepthDeep, SearchDepthDeeper:
		return true
	}
	return false
}

// GenerateTextStream returns a lazy event stream for r. Nothing is sent
// until the first Recv. Failures, including a missing base URL, arrive as
// a single error event rather than as a returned error.
func (c *Client) GenerateTextStream(ctx context.Context, r StreamRequest) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ctx:     ctx,
		cancel:  cancel,
		decoder: stream.NewDecoder(c.logger),
		logger:  c.logger,
	}

	cfg := c.config.Load()
	if cfg.Server.BaseURL == "" {
		s.failEarly(ErrNotConfigured.Error())
		return s
	}
	if r.WebSearchDepth == "" {
		r.WebSearchDepth = SearchDepthNormal
	}
	if !validDepth(r.WebSearchDepth) {
		s.failEarly(fmt.Sprintf("invalid web search depth %q", r.WebSearchDepth))
		return s
	}

	req, err := newRequest(http.MethodPost, "/chat/stream", streamBody{
		chatBody:         r.body(),
		WebSearchEnabled: r.WebSearchEnabled,
		WebSearchDepth:   r.WebSearchDepth,
	})
	if err != nil {
		s.failEarly(err.Error())
		return s
	}

	s.open = func(ctx context.Context) (*http.Response, error) {
		httpReq, err := buildHTTPRequest(ctx, cfg, req)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "text/event-stream")
		c.logger.Debug("parallax stream request",
			zap.String("path", req.path),
			zap.Bool("web_search", r.WebSearchEnabled),
			zap.String("depth", r.WebSearchDepth),
		)
		resp, err := c.streamClient.Do(httpReq)
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	}
	return s
}

// Stream is a pull-based sequence of events for one streaming request.
// Recv returns events in arrival order and io.EOF after the terminal event.
// The connection is closed once, on the terminal event or on Close,
// whichever comes first.
//
// A Stream is not safe for concurrent Recv calls; Close may be called from
// any goroutine.
type Stream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	open    func(ctx context.Context) (*http.Response, error)
	decoder *stream.Decoder
	logger  *logger.Logger

	started  bool
	pending  []types.StreamEvent
	finished bool
	buf      []byte
	events   int
	begin    time.Time

	mu        sync.Mutex
	body      io.ReadCloser
	abandoned bool
	closeOnce sync.Once
}

func (s *Stream) failEarly(message string) {
	s.started = true
	s.pending = s.decoder.Fail(message)
}

// Recv returns the next event. After the terminal event it returns io.EOF.
func (s *Stream) Recv() (types.StreamEvent, error) {
	for {
		if s.isAbandoned() {
			s.pending = nil
			return types.StreamEvent{}, io.EOF
		}
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.events++
			if ev.IsTerminal() {
				s.finish(ev)
			}
			return ev, nil
		}
		if s.finished {
			return types.StreamEvent{}, io.EOF
		}
		if !s.started {
			s.start()
			continue
		}
		s.read()
	}
}

// start dispatches the request and waits for the response headers
func (s *Stream) start() {
	s.started = true
	s.begin = time.Now()

	resp, err := s.open(s.ctx)
	if err != nil {
		s.pending = s.decoder.Fail(errorMessage(err))
		return
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()
		message := string(data)
		if len(data) == 0 {
			message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		s.logger.Warn("stream rejected", zap.Int("status", resp.StatusCode), zap.String("body", message))
		s.pending = s.decoder.Fail(message)
		return
	}

	s.mu.Lock()
	abandoned := s.abandoned
	if !abandoned {
		s.body = resp.Body
	}
	s.mu.Unlock()
	if abandoned {
		resp.Body.Close()
		return
	}
	s.buf = make([]byte, 4096)
}

// read pulls one chunk from the body through the decoder
func (s *Stream) read() {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		s.pending = append(s.pending, s.decoder.Feed(s.buf[:n])...)
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.pending = append(s.pending, s.decoder.Finish()...)
	default:
		if s.isAbandoned() {
			return
		}
		s.pending = append(s.pending, s.decoder.Fail(errorMessage(classify(err)))...)
	}
	if s.decoder.Terminated() {
		s.release()
	}
}

func (s *Stream) finish(ev types.StreamEvent) {
	s.finished = true
	s.release()

	fields := []zap.Field{
		zap.String("terminal", string(ev.Kind)),
		zap.Int("events", s.events),
	}
	if !s.begin.IsZero() {
		fields = append(fields, zap.Duration("duration", time.Since(s.begin)))
	}
	if ev.Kind == types.EventError {
		s.logger.Warn("stream ended with error", append(fields, zap.String("error", ev.ErrorMessage))...)
		return
	}
	s.logger.Debug("stream finished", fields...)
}

// release closes the response body exactly once and cancels any request
// still waiting for headers.
func (s *Stream) release() {
	s.mu.Lock()
	body := s.body
	s.mu.Unlock()
	if body != nil {
		s.closeOnce.Do(func() {
			body.Close()
		})
	}
	s.cancel()
}

func (s *Stream) isAbandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// Close abandons the stream and releases the connection. Any events not
// yet received are dropped. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.abandoned = true
	s.mu.Unlock()
	s.release()
	return nil
}

// Events adapts the stream to a range-over-func iterator. Breaking out of
// the loop closes the stream.
func (s *Stream) Events() iter.Seq[types.StreamEvent] {
	return func(yield func(types.StreamEvent) bool) {
		defer s.Close()
		for {
			ev, err := s.Recv()
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Collect drains the stream into a slice
func (s *Stream) Collect() []types.StreamEvent {
	var events []types.StreamEvent
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func errorMessage(err error) string {
	return stream.CleanErrorMessage(err.Error())
}
