package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "json on stdout",
			config: &Config{
				Level:   "info",
				Format:  "json",
				Output:  "console",
				Console: "stdout",
			},
			wantErr: false,
		},
		{
			name: "file output",
			config: &Config{
				Level:  "debug",
				Format: "json",
				Output: "file",
				File: FileConfig{
					Filename:   filepath.Join(dir, "client.log"),
					MaxSize:    10,
					MaxAge:     7,
					MaxBackups: 3,
				},
			},
			wantErr: false,
		},
		{
			name: "invalid level",
			config: &Config{
				Level:  "verbose",
				Format: "json",
				Output: "console",
			},
			wantErr: true,
		},
		{
			name: "invalid console stream",
			config: &Config{
				Level:   "info",
				Format:  "json",
				Output:  "console",
				Console: "tty",
			},
			wantErr: true,
		},
		{
			name: "file output without filename",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "file",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			logger.Info("hello")
			_ = logger.Sync()
		})
	}
}

func TestProductionWritesFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := Production(filename)
	require.NoError(t, err)
	logger.Info("mock server started")
	_ = logger.Sync()

	assert.FileExists(t, filename)
}

func TestContextFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSessionID(ctx, "session-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "session-1", GetSessionID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))

	nop := NewNop()
	ctx = ToContext(ctx, nop)
	assert.NotNil(t, FromContext(ctx))
	InfoContext(ctx, "folded event", zap.String("kind", "content"))
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, InitGlobal(DefaultConfig()))
	assert.NotNil(t, L())

	SetGlobal(NewNop())
	Debug("debug message", zap.String("key", "value"))
	Warn("warn message")
	_ = Sync()
}

func TestGinLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinRecovery(NewNop()), GinLoggerWithConfig(NewNop(), MiddlewareOptions{SkipPaths: []string{"/healthz"}}))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c.Request.Context()))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
