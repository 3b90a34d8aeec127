package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/mockserver"
	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(baseURL, password string) *conf.Config {
	cfg := conf.Default()
	cfg.Server.BaseURL = baseURL
	cfg.Server.Password = password
	cfg.Transport.ConnectTimeout = 2 * time.Second
	cfg.Transport.SendTimeout = 2 * time.Second
	cfg.Transport.ReceiveTimeout = 2 * time.Second
	cfg.Transport.RetryDelay = 20 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, cfg *conf.Config) (*Client, *conf.Provider) {
	t.Helper()
	provider := conf.NewProvider(cfg)
	client := New(provider, nil)
	t.Cleanup(func() { _ = client.Close() })
	return client, provider
}

// newMock starts the mock Parallax server
func newMock(t *testing.T, password string) *httptest.Server {
	t.Helper()
	srv := mockserver.New(conf.MockServerConfig{Password: password, LogDir: t.TempDir(), MaxLogs: 20}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// countingServer answers every request with handler and counts hits
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestRetryExhaustedOnServerError(t *testing.T) {
	ts, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	cfg := testConfig(ts.URL, "")
	client, _ := newTestClient(t, cfg)

	start := time.Now()
	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ServerError))
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusCode(err))
	assert.EqualValues(t, cfg.Transport.MaxRetries+1, hits.Load())
	assert.GreaterOrEqual(t, elapsed, time.Duration(cfg.Transport.MaxRetries)*cfg.Transport.RetryDelay)
}

func TestRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer flaky.Close()

	client, _ := newTestClient(t, testConfig(flaky.URL, ""))
	text, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	ts, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Not Found"}`, http.StatusNotFound)
	})
	client, _ := newTestClient(t, testConfig(ts.URL, ""))

	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ClientError))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestNotConfigured(t *testing.T) {
	client, _ := newTestClient(t, testConfig("", ""))

	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, apperrors.IsKind(err, apperrors.NotConfigured))
	assert.False(t, client.TestConnection(context.Background()))
}

func TestRetryWaitHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	cfg := testConfig(ts.URL, "")
	cfg.Transport.RetryDelay = time.Minute
	client, _ := newTestClient(t, cfg)

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.GenerateText(ctx, ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Cancelled))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.EqualValues(t, 1, hits.Load())
}

func TestPasswordHeader(t *testing.T) {
	var got atomic.Value
	ts, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Values(PasswordHeader))
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	})

	client, provider := newTestClient(t, testConfig(ts.URL, "pw"))
	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pw"}, got.Load())

	provider.SetServer(ts.URL, "")
	_, err = client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Empty(t, got.Load())
}

func TestServerChangeAppliesToNextCall(t *testing.T) {
	first, firstHits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"first"}`))
	})
	second, secondHits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"second"}`))
	})

	client, provider := newTestClient(t, testConfig(first.URL, ""))
	text, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	provider.SetServer(second.URL+"/", "")
	text, err = client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.EqualValues(t, 1, firstHits.Load())
	assert.EqualValues(t, 1, secondHits.Load())
}

func TestConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := testConfig("http://"+addr, "")
	cfg.Transport.MaxRetries = 1
	client, _ := newTestClient(t, cfg)

	_, err = client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.NoInternet), err.Error())
}

func TestReceiveTimeout(t *testing.T) {
	release := make(chan struct{})
	ts, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	defer close(release)

	cfg := testConfig(ts.URL, "")
	cfg.Transport.ReceiveTimeout = 100 * time.Millisecond
	cfg.Transport.MaxRetries = 0
	client, _ := newTestClient(t, cfg)

	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ReceiveTimeout), err.Error())
}

func TestWrongPasswordAgainstMock(t *testing.T) {
	ts := newMock(t, "secret")
	client, _ := newTestClient(t, testConfig(ts.URL, "nope"))

	_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ClientError))
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(err))
	assert.Contains(t, err.Error(), "Invalid password")
}
