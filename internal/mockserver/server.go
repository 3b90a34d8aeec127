// Package mockserver is a local stand-in for a Parallax server running in
// mock mode. It serves the same routes and wire formats with canned
// answers so the client can be exercised without a model.
package mockserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
)

const (
	// Mode is reported by / and /info
	Mode = "MOCK"
	// Version is reported by /info
	Version = "1.0.0"
	// ModelID names the only model the mock serves
	ModelID = "mock-model"

	maxPromptLength       = 32000
	maxSystemPromptLength = 8000
	maxMessageHistory     = 100
	maxImageBytes         = 8 * 1024 * 1024
	maxLogChars           = 500_000
	maxLogPayloadBytes    = 600_000
)

type Server struct {
	config conf.MockServerConfig
	logger *logger.Logger
	now    func() time.Time
	search SearchFunc
}

type Option func(*Server)

// WithClock replaces time.Now, for deterministic file names in tests
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithSearch replaces the canned web search
func WithSearch(fn SearchFunc) Option {
	return func(s *Server) { s.search = fn }
}

func New(config conf.MockServerConfig, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		config: config,
		logger: log.Named("mockserver"),
		now:    time.Now,
		search: cannedSearch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin engine with every route registered
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(logger.GinRecovery(s.logger))
	router.Use(logger.GinLoggerWithConfig(s.logger, logger.MiddlewareOptions{
		SkipPaths: []string{"/healthz"},
	}))

	router.GET("/healthz", s.healthz)

	auth := router.Group("/", s.requirePassword())
	auth.GET("/", s.home)
	auth.GET("/status", s.status)
	auth.GET("/info", s.info)
	auth.GET("/models", s.models)
	auth.POST("/chat", s.chat)
	auth.POST("/chat/stream", s.chatStream)
	auth.POST("/vision", s.vision)
	auth.POST("/v1/chat/completions", s.chatCompletions)
	auth.POST("/logs/upload", s.uploadLogs)

	return router
}

func (s *Server) sleep(c *gin.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.Request.Context().Done():
		return false
	case <-t.C:
		return true
	}
}
