// Package service is the session controller: it owns the active
// transcript, drives transport calls for it and archives finished
// conversations into the session store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/parallax-connect/internal/chat/store"
	"github.com/lk2023060901/parallax-connect/internal/chat/transcript"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/pkg/validator"
	"github.com/lk2023060901/parallax-connect/internal/transport"
	"go.uber.org/zap"
)

// TitleLength is the maximum title length, in runes, derived from the
// first user message.
const TitleLength = 40

// DefaultTitle names a session that has no user message
const DefaultTitle = "New Chat"

var (
	// ErrStreamInProgress is returned while a reply is still being produced
	ErrStreamInProgress = errors.New("service: a reply is already in progress")
	// ErrEmptyPrompt is returned for a blank prompt
	ErrEmptyPrompt = errors.New("service: prompt is empty")
	// ErrEmptyTitle is returned by Rename for a blank title
	ErrEmptyTitle = errors.New("service: title is empty")
	// ErrReplyFailed wraps the message of a terminal error event
	ErrReplyFailed = errors.New("service: reply failed")
)

// ChatClient is the part of the transport client the controller drives
type ChatClient interface {
	GenerateText(ctx context.Context, r transport.ChatRequest) (string, error)
	GenerateTextStream(ctx context.Context, r transport.StreamRequest) *transport.Stream
	ClassifyIntent(ctx context.Context, query string, history []types.ChatMessage) (*transport.Intent, error)
}

// SendOptions tune a single turn
type SendOptions struct {
	SystemPrompt string
	Options      transport.ChatOptions
	Attachments  []string

	// WebSearch asks the server to search before answering. AutoSearch
	// lets the intent classifier turn it on for prompts that need it.
	WebSearch   bool
	AutoSearch  bool
	SearchDepth string
}

// Service owns one active conversation
type Service struct {
	client    ChatClient
	store     store.Store
	logger    *logger.Logger
	now       func() time.Time
	newID     func() string
	retention int

	mu     sync.Mutex
	active *transcript.Transcript
	// the stored session the active transcript was opened from, if any
	opened *types.ChatSession
	busy   bool
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid session ids
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithRetention prunes the store to limit sessions after each archive
func WithRetention(limit int) Option {
	return func(s *Service) { s.retention = limit }
}

// New creates a controller with an empty active transcript
func New(client ChatClient, st store.Store, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		client: client,
		store:  st,
		logger: log.Named("service"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.active = s.newTranscript(nil)
	return s
}

func (s *Service) newTranscript(messages []types.ChatMessage) *transcript.Transcript {
	return transcript.New(messages, transcript.WithClock(s.now))
}

// Messages returns a copy of the active conversation
func (s *Service) Messages() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Messages()
}

// acquire marks the controller busy and appends the user turn. It returns
// the history to send, which excludes the new turn.
func (s *Service) acquire(prompt string, attachments []string) ([]types.ChatMessage, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || s.active.Streaming() {
		return nil, ErrStreamInProgress
	}
	s.busy = true
	history := s.active.History()
	s.active.AppendUser(prompt, attachments...)
	return history, nil
}

func (s *Service) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Send asks for a complete reply. A failed call still records an
// "Error: ..." assistant turn so the conversation shows what happened.
func (s *Service) Send(ctx context.Context, prompt string, opts SendOptions) (types.ChatMessage, error) {
	history, err := s.acquire(prompt, opts.Attachments)
	if err != nil {
		return types.ChatMessage{}, err
	}
	defer s.release()

	text, callErr := s.client.GenerateText(ctx, transport.ChatRequest{
		Prompt:       prompt,
		SystemPrompt: opts.SystemPrompt,
		History:      history,
		Options:      opts.Options,
	})

	msg := types.NewAssistantMessage(text, s.now())
	if callErr != nil {
		msg.Text = "Error: " + callErr.Error()
	} else if thinking, rest, ok := transcript.SplitThinking(text); ok {
		msg.Text = rest
		msg.ThinkingContent = &thinking
	}

	s.mu.Lock()
	s.active.Append(msg)
	s.mu.Unlock()

	if callErr != nil {
		s.logger.WithContext(ctx).Warn("chat request failed", zap.Error(callErr))
		return msg, callErr
	}
	return msg, nil
}

// Stream asks for a streamed reply and folds every event into the active
// transcript. onEvent, when set, sees each event after it was folded. The
// returned message is the frozen assistant turn; a terminal error event is
// also reported as an error wrapping ErrReplyFailed.
func (s *Service) Stream(ctx context.Context, prompt string, opts SendOptions, onEvent func(types.StreamEvent)) (types.ChatMessage, error) {
	history, err := s.acquire(prompt, opts.Attachments)
	if err != nil {
		return types.ChatMessage{}, err
	}
	defer s.release()

	log := s.logger.WithContext(ctx)
	webSearch := opts.WebSearch
	if opts.AutoSearch && !webSearch {
		intent, err := s.client.ClassifyIntent(ctx, prompt, history)
		switch {
		case err != nil:
			log.Warn("intent classification failed, continuing without search", zap.Error(err))
		case intent.NeedsSearch:
			log.Debug("intent requires web search", zap.String("reason", intent.Reason))
			webSearch = true
		}
	}

	s.mu.Lock()
	err = s.active.Begin()
	s.mu.Unlock()
	if err != nil {
		return types.ChatMessage{}, err
	}

	st := s.client.GenerateTextStream(ctx, transport.StreamRequest{
		ChatRequest: transport.ChatRequest{
			Prompt:       prompt,
			SystemPrompt: opts.SystemPrompt,
			History:      history,
			Options:      opts.Options,
		},
		WebSearchEnabled: webSearch,
		WebSearchDepth:   opts.SearchDepth,
	})
	defer st.Close()

	var failure string
	for ev := range st.Events() {
		s.mu.Lock()
		_, foldErr := s.active.Fold(ev)
		s.mu.Unlock()
		if foldErr != nil {
			log.Warn("dropping event outside a reply", zap.String("kind", string(ev.Kind)))
			continue
		}
		if ev.Kind == types.EventError {
			failure = ev.ErrorMessage
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}

	s.mu.Lock()
	s.active.Abort()
	msg, _ := s.active.Last()
	s.mu.Unlock()

	if failure != "" {
		return msg, fmt.Errorf("%w: %s", ErrReplyFailed, failure)
	}
	return msg, nil
}

// ArchiveActive stores the active conversation and starts an empty one.
// An empty conversation is discarded and reported as not archived. A
// conversation opened from the store keeps its id, title and flag. When
// Save fails the active conversation is left untouched.
func (s *Service) ArchiveActive(ctx context.Context) (types.ChatSession, bool, error) {
	s.mu.Lock()
	if s.busy || s.active.Streaming() {
		s.mu.Unlock()
		return types.ChatSession{}, false, ErrStreamInProgress
	}
	messages := s.active.Messages()
	opened := s.opened
	if len(messages) == 0 {
		s.active = s.newTranscript(nil)
		s.opened = nil
		s.mu.Unlock()
		return types.ChatSession{}, false, nil
	}
	// busy holds off Send and Stream until Save settles
	s.busy = true
	s.mu.Unlock()

	sess := types.ChatSession{
		ID:        s.newID(),
		Messages:  messages,
		Timestamp: s.now(),
	}
	sess.Title = titleFor(sess)
	if opened != nil {
		sess.ID = opened.ID
		sess.Title = opened.Title
		sess.IsImportant = opened.IsImportant
	}

	err := s.store.Save(ctx, sess)
	s.mu.Lock()
	s.busy = false
	if err == nil {
		s.active = s.newTranscript(nil)
		s.opened = nil
	}
	s.mu.Unlock()
	if err != nil {
		return types.ChatSession{}, false, err
	}
	s.logger.WithContext(ctx).Info("session archived",
		zap.String("session_id", sess.ID),
		zap.Int("messages", len(messages)),
	)

	if s.retention > 0 {
		if n, err := store.Prune(ctx, s.store, s.retention); err != nil {
			s.logger.WithContext(ctx).Warn("session prune failed", zap.Error(err))
		} else if n > 0 {
			s.logger.WithContext(ctx).Info("sessions pruned", zap.Int("deleted", n))
		}
	}
	return sess, true, nil
}

func titleFor(sess types.ChatSession) string {
	first := strings.TrimSpace(sess.FirstUserText())
	if first == "" {
		return DefaultTitle
	}
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = strings.TrimSpace(first[:i])
	}
	return validator.Truncate(first, TitleLength)
}

// Open archives the active conversation and continues stored session id
func (s *Service) Open(ctx context.Context, id string) (types.ChatSession, error) {
	// archive first so reopening the active session reads its newest turns
	if _, _, err := s.ArchiveActive(ctx); err != nil {
		return types.ChatSession{}, err
	}
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return types.ChatSession{}, err
	}

	s.mu.Lock()
	s.active = s.newTranscript(sess.Messages)
	s.opened = &sess
	s.mu.Unlock()
	return sess.Clone(), nil
}

// List returns stored sessions, important first, then newest first
func (s *Service) List(ctx context.Context) ([]types.ChatSession, error) {
	sessions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	store.Sort(sessions)
	return sessions, nil
}

// Get returns a stored session
func (s *Service) Get(ctx context.Context, id string) (types.ChatSession, error) {
	return s.store.Get(ctx, id)
}

// Rename changes a stored session's title
func (s *Service) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	return s.update(ctx, id, func(sess *types.ChatSession) {
		sess.Title = title
	})
}

// ToggleImportant flips the important flag and returns the new value
func (s *Service) ToggleImportant(ctx context.Context, id string) (bool, error) {
	var important bool
	err := s.update(ctx, id, func(sess *types.ChatSession) {
		sess.IsImportant = !sess.IsImportant
		important = sess.IsImportant
	})
	return important, err
}

func (s *Service) update(ctx context.Context, id string, fn func(*types.ChatSession)) error {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	fn(&sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return err
	}

	s.mu.Lock()
	if s.opened != nil && s.opened.ID == id {
		s.opened.Title = sess.Title
		s.opened.IsImportant = sess.IsImportant
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a stored session. Deleting the session that is currently
// open detaches it, so archiving later creates a new one.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.opened != nil && s.opened.ID == id {
		s.opened = nil
	}
	s.mu.Unlock()
	return nil
}
