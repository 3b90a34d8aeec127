package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Kind
		isNil  bool
	}{
		{name: "ok", status: 200, isNil: true},
		{name: "not found", status: 404, want: ClientError},
		{name: "unauthorized", status: 401, want: ClientError},
		{name: "internal", status: 500, want: ServerError},
		{name: "bad gateway", status: 502, want: ServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HTTP(tt.status, "body")
			if tt.isNil {
				assert.Nil(t, err)
				return
			}
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, "body", err.Body)
		})
	}
}

func TestWrapKeepsKind(t *testing.T) {
	inner := New(ReceiveTimeout)
	wrapped := fmt.Errorf("generate text: %w", inner)

	assert.Same(t, inner, Wrap(wrapped, Unknown))
	assert.Equal(t, ReceiveTimeout, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, ReceiveTimeout))
	assert.Nil(t, Wrap(nil, Unknown))
}

func TestIsAndUnwrap(t *testing.T) {
	err := Wrap(context.Canceled, Cancelled)

	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.True(t, stderrors.Is(err, New(Cancelled)))
	assert.False(t, stderrors.Is(err, New(NoInternet)))

	server := HTTP(503, "overloaded")
	assert.True(t, stderrors.Is(server, &Error{Kind: ServerError, StatusCode: 503}))
	assert.False(t, stderrors.Is(server, &Error{Kind: ServerError, StatusCode: 500}))
}

func TestRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ConnectionTimeout)))
	assert.True(t, IsRetryable(New(SendTimeout)))
	assert.True(t, IsRetryable(New(NoInternet)))
	assert.True(t, IsRetryable(HTTP(500, "")))
	assert.False(t, IsRetryable(HTTP(404, "")))
	assert.False(t, IsRetryable(New(ParseError)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Server error (500): boom", HTTP(500, "boom").Error())
	assert.Equal(t, "Connection timed out", New(ConnectionTimeout).Error())
	assert.Equal(t, "NoInternet", NoInternet.String())
	assert.Equal(t, 404, StatusCode(fmt.Errorf("x: %w", HTTP(404, ""))))
}
