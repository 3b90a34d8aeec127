package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no server base URL is set
var ErrNotConfigured = apperrors.New(apperrors.NotConfigured)

// classify maps any failure of a request into the error taxonomy. Every
// call path funnels its errors through here exactly once.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var classified *apperrors.Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(err, apperrors.Cancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(err, apperrors.ReceiveTimeout)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 {
		return apperrors.HTTP(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode >= 400 {
		return apperrors.HTTP(reqErr.HTTPStatusCode, reqErr.Error())
	}

	var pe *phaseError
	if errors.As(err, &pe) {
		return apperrors.Wrap(err, pe.kind)
	}
	// net/http flattens some connection errors into strings
	msg := err.Error()
	switch {
	case strings.Contains(msg, sendTimeoutMessage):
		return apperrors.Wrap(err, apperrors.SendTimeout)
	case strings.Contains(msg, receiveTimeoutMessage):
		return apperrors.Wrap(err, apperrors.ReceiveTimeout)
	case strings.Contains(msg, "TLS handshake timeout"):
		return apperrors.Wrap(err, apperrors.ConnectionTimeout)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return apperrors.Wrap(err, apperrors.ConnectionTimeout)
		}
		return apperrors.Wrap(err, apperrors.NoInternet)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return apperrors.Wrap(err, apperrors.ConnectionTimeout)
		}
		return apperrors.Wrap(err, apperrors.NoInternet)
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return apperrors.Wrap(err, apperrors.NoInternet)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(err, apperrors.ReceiveTimeout)
	}
	if opErr != nil {
		return apperrors.Wrap(err, apperrors.NoInternet)
	}
	return apperrors.Wrap(err, apperrors.Unknown)
}

// parseError marks a response body that could not be understood
func parseError(err error) error {
	return apperrors.Wrap(err, apperrors.ParseError)
}
