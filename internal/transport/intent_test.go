package transport

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClassifyIntentAgainstMock(t *testing.T) {
	mock := newMock(t, "pw")
	client, _ := newTestClient(t, testConfig(mock.URL, "pw"))
	ctx := context.Background()

	intent, err := client.ClassifyIntent(ctx, "what is the weather today", nil)
	require.NoError(t, err)
	assert.True(t, intent.NeedsSearch)
	assert.Equal(t, "what is the weather today", intent.SearchQuery)

	intent, err = client.ClassifyIntent(ctx, "tell me a joke", nil)
	require.NoError(t, err)
	assert.False(t, intent.NeedsSearch)
	assert.Empty(t, intent.SearchQuery)
}

func TestClassifyIntentRequest(t *testing.T) {
	var (
		body     atomic.Value
		password atomic.Value
		bearer   atomic.Value
	)
	ts, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		password.Store(r.Header.Get(PasswordHeader))
		bearer.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"`+
			"```json\\n{\\\"needs_search\\\": true, \\\"search_query\\\": \\\"\\\", \\\"reason\\\": \\\"fresh\\\"}\\n```"+
			`"},"finish_reason":"stop"}]}`)
	})
	client, _ := newTestClient(t, testConfig(ts.URL, "pw"))

	now := time.Now()
	var history []types.ChatMessage
	for i := 0; i < 6; i++ {
		history = append(history, types.NewUserMessage("q", now), types.NewAssistantMessage("a", now))
	}

	intent, err := client.ClassifyIntent(context.Background(), "gold price", history)
	require.NoError(t, err)
	assert.True(t, intent.NeedsSearch)
	assert.Equal(t, "gold price", intent.SearchQuery, "empty query falls back to the prompt")
	assert.Equal(t, "fresh", intent.Reason)

	assert.Equal(t, "pw", password.Load())
	assert.Empty(t, bearer.Load())

	msgs := gjson.Get(body.Load().(string), "messages").Array()
	require.Len(t, msgs, intentHistoryTurns+2)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "gold price", msgs[len(msgs)-1].Get("content").String())
}

func TestClassifyIntentErrors(t *testing.T) {
	client, _ := newTestClient(t, testConfig("", ""))
	_, err := client.ClassifyIntent(context.Background(), "x", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	mock := newMock(t, "secret")
	client, _ = newTestClient(t, testConfig(mock.URL, "wrong"))
	_, err = client.ClassifyIntent(context.Background(), "x", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ClientError), err.Error())
	assert.Equal(t, http.StatusUnauthorized, apperrors.StatusCode(err))
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *Intent
		wantErr bool
	}{
		{
			name:    "plain",
			content: `{"needs_search": false, "search_query": "", "reason": "chit chat"}`,
			want:    &Intent{Reason: "chit chat"},
		},
		{
			name:    "surrounded by text",
			content: "Sure! {\"needs_search\": true, \"search_query\": \"go 1.24\"} hope that helps",
			want:    &Intent{NeedsSearch: true, SearchQuery: "go 1.24"},
		},
		{
			name:    "query defaults to prompt",
			content: `{"needs_search": true}`,
			want:    &Intent{NeedsSearch: true, SearchQuery: "prompt"},
		},
		{name: "no object", content: "no", wantErr: true},
		{name: "broken object", content: "{needs_search: yes}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntent(tt.content, "prompt")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsKind(err, apperrors.ParseError))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
