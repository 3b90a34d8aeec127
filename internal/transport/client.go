// Package transport talks to a Parallax server over HTTP: unary chat and
// vision calls with retry, and lazily dispatched event streams.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/conf"
	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"go.uber.org/zap"
)

// PasswordHeader carries the shared secret
const PasswordHeader = "x-password"

// maxResponseBytes bounds unary response bodies
const maxResponseBytes = 16 << 20

// ConfigProvider supplies the configuration snapshot a call runs with
type ConfigProvider interface {
	Load() *conf.Config
}

// Client is a Parallax HTTP client. It is safe for concurrent use.
type Client struct {
	config ConfigProvider
	logger *logger.Logger

	// unary requests: every read is bounded by the receive timeout
	httpClient *http.Client
	// streams: only connect, send and header wait are bounded
	streamClient *http.Client
}

// New creates a client. Timeouts are read from the provider once, here;
// base URL, password and retry settings are read on every call.
func New(provider ConfigProvider, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	t := provider.Load().Transport

	return &Client{
		config: provider,
		logger: log.Named("transport"),
		httpClient: &http.Client{
			Transport: newTransport(timeouts{
				connect: t.ConnectTimeout,
				send:    t.SendTimeout,
				receive: t.ReceiveTimeout,
			}),
		},
		streamClient: &http.Client{
			Transport: newTransport(timeouts{
				connect:       t.ConnectTimeout,
				send:          t.SendTimeout,
				receive:       t.ReceiveTimeout,
				bodyUnbounded: true,
			}),
		},
	}
}

// request is one logical call. The body is encoded once and replayed on
// every attempt.
type request struct {
	method string
	path   string
	body   []byte
}

type response struct {
	status int
	body   []byte
}

func newRequest(method, path string, body any) (request, error) {
	req := request{method: method, path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return req, fmt.Errorf("marshal request body: %w", err)
		}
		req.body = data
	}
	return req, nil
}

// buildHTTPRequest applies the JSON and auth headers
func buildHTTPRequest(ctx context.Context, cfg *conf.Config, req request) (*http.Request, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, cfg.Server.BaseURL+req.path, body)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("create request: %w", err), apperrors.Unknown)
	}
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	setAuth(httpReq.Header, cfg.Server.Password)
	return httpReq, nil
}

func setAuth(h http.Header, password string) {
	if password != "" {
		h.Set(PasswordHeader, password)
	}
}

// doOnce performs a single attempt. Responses with status >= 400 become
// ServerError or ClientError.
func (c *Client) doOnce(ctx context.Context, cfg *conf.Config, req request) (*response, error) {
	httpReq, err := buildHTTPRequest(ctx, cfg, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("parallax request",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("body_bytes", len(req.body)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("parallax response",
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(data)),
	)

	if httpErr := apperrors.HTTP(resp.StatusCode, string(data)); httpErr != nil {
		return nil, httpErr
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// do runs req under the retry policy: transient network failures and 5xx
// responses are retried up to MaxRetries times, RetryDelay apart. 4xx and
// everything else fails immediately.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	cfg := c.config.Load()
	if cfg.Server.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	policy := cfg.Transport
	for attempt := 0; ; attempt++ {
		resp, err := c.doOnce(ctx, cfg, req)
		if err == nil {
			return resp, nil
		}
		if !apperrors.IsRetryable(err) || attempt >= policy.MaxRetries {
			if attempt > 0 {
				c.logger.Warn("request failed after retries",
					zap.String("path", req.path),
					zap.Int("retries", attempt),
					zap.Error(err),
				)
			}
			return nil, err
		}

		c.logger.Warn("request failed, retrying",
			zap.String("path", req.path),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Stringer("kind", apperrors.KindOf(err)),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, classify(ctx.Err())
		case <-time.After(policy.RetryDelay):
		}
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.streamClient.CloseIdleConnections()
	return nil
}
