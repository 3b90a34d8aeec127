package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
)

const (
	sendTimeoutMessage    = "send timeout"
	receiveTimeoutMessage = "receive timeout"
)

// phaseError tags an i/o timeout with the phase it happened in, so the
// classifier can tell a stalled upload from a stalled response.
type phaseError struct {
	kind apperrors.Kind
	err  error
}

func (e *phaseError) Error() string {
	if e.kind == apperrors.SendTimeout {
		return sendTimeoutMessage + ": " + e.err.Error()
	}
	return receiveTimeoutMessage + ": " + e.err.Error()
}

func (e *phaseError) Unwrap() error   { return e.err }
func (e *phaseError) Timeout() bool   { return true }
func (e *phaseError) Temporary() bool { return true }

// phaseConn applies a fresh deadline before every Write and, when receive
// is set, before every Read. Zero disables the deadline.
type phaseConn struct {
	net.Conn
	send    time.Duration
	receive time.Duration
}

func (c *phaseConn) Write(b []byte) (int, error) {
	if c.send > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.send))
	}
	n, err := c.Conn.Write(b)
	if isTimeout(err) {
		return n, &phaseError{kind: apperrors.SendTimeout, err: err}
	}
	return n, err
}

func (c *phaseConn) Read(b []byte) (int, error) {
	if c.receive > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.receive))
	}
	n, err := c.Conn.Read(b)
	if isTimeout(err) {
		return n, &phaseError{kind: apperrors.ReceiveTimeout, err: err}
	}
	return n, err
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

type timeouts struct {
	connect time.Duration
	send    time.Duration
	receive time.Duration
	// bodyUnbounded leaves reads after the response headers without a deadline
	bodyUnbounded bool
}

// newTransport builds an http.Transport enforcing per-phase timeouts
func newTransport(t timeouts) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   t.connect,
		KeepAlive: 30 * time.Second,
	}

	readDeadline := t.receive
	if t.bodyUnbounded {
		readDeadline = 0
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &phaseConn{Conn: conn, send: t.send, receive: readDeadline}, nil
		},
		TLSHandshakeTimeout:   t.connect,
		ResponseHeaderTimeout: t.receive,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}
