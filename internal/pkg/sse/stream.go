package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// DoneSentinel 流结束标记
const DoneSentinel = "[DONE]"

// ErrClosed is returned by writes after the client went away or Done was sent
var ErrClosed = errors.New("sse: stream closed")

// Stream writes data-only SSE frames to a gin response
type Stream struct {
	ctx     *gin.Context
	closed  atomic.Bool
	started time.Time
	frames  atomic.Int64
}

// NewStream 设置 SSE 响应头并返回 Stream
func NewStream(c *gin.Context) *Stream {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)

	return &Stream{ctx: c, started: time.Now()}
}

// Send 发送一帧 JSON 数据
func (s *Stream) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal frame: %w", err)
	}
	return s.write("data: " + string(data) + "\n\n")
}

// Done writes the terminal sentinel. Later writes return ErrClosed.
func (s *Stream) Done() error {
	if err := s.write("data: " + DoneSentinel + "\n\n"); err != nil {
		return err
	}
	s.closed.Store(true)
	return nil
}

// Comment 发送注释行（心跳）
func (s *Stream) Comment(text string) error {
	return s.write(": " + text + "\n\n")
}

// Gone reports whether the client disconnected
func (s *Stream) Gone() bool {
	select {
	case <-s.ctx.Request.Context().Done():
		return true
	default:
		return false
	}
}

// Frames is the number of frames written so far
func (s *Stream) Frames() int64 { return s.frames.Load() }

// Elapsed is the time since the headers were written
func (s *Stream) Elapsed() time.Duration { return time.Since(s.started) }

func (s *Stream) write(frame string) error {
	if s.closed.Load() || s.Gone() {
		return ErrClosed
	}
	if _, err := fmt.Fprint(s.ctx.Writer, frame); err != nil {
		s.closed.Store(true)
		return err
	}
	s.ctx.Writer.Flush()
	s.frames.Add(1)
	return nil
}
