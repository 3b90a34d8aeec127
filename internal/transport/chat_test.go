package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/mockserver"
	apperrors "github.com/lk2023060901/parallax-connect/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// capture records the last request body seen by a test server
func capture(t *testing.T, reply string) (string, *atomic.Value) {
	t.Helper()
	var body atomic.Value
	ts, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body.Store(string(data))
		_, _ = w.Write([]byte(reply))
	})
	return ts.URL, &body
}

func TestTestConnection(t *testing.T) {
	mock := newMock(t, "pw")
	client, provider := newTestClient(t, testConfig(mock.URL, "pw"))
	assert.True(t, client.TestConnection(context.Background()))

	provider.SetServer(mock.URL, "wrong")
	assert.False(t, client.TestConnection(context.Background()))

	offline, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"offline"}`))
	})
	provider.SetServer(offline.URL, "")
	assert.False(t, client.TestConnection(context.Background()))

	broken, brokenHits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	provider.SetServer(broken.URL, "")
	assert.False(t, client.TestConnection(context.Background()))
	assert.EqualValues(t, 1, hits.Load())
	assert.EqualValues(t, 1, brokenHits.Load(), "connection test does not retry")
}

func TestGenerateTextAgainstMock(t *testing.T) {
	mock := newMock(t, "")
	client, _ := newTestClient(t, testConfig(mock.URL, ""))

	text, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "ping"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "[MOCK] Server received: 'ping'."))
}

func TestGenerateTextSendsHistory(t *testing.T) {
	url, body := capture(t, `{"response":"ok"}`)
	client, _ := newTestClient(t, testConfig(url, ""))
	now := time.Now()

	history := []types.ChatMessage{
		types.NewUserMessage("first", now),
		types.NewAssistantMessage("answer", now),
	}
	temp := 0.2
	_, err := client.GenerateText(context.Background(), ChatRequest{
		Prompt:       "second",
		SystemPrompt: "be brief",
		History:      history,
		Options:      ChatOptions{Model: "m", MaxTokens: 64, Temperature: &temp},
	})
	require.NoError(t, err)

	sent := body.Load().(string)
	assert.Equal(t, "second", gjson.Get(sent, "prompt").String())
	assert.Equal(t, "be brief", gjson.Get(sent, "system_prompt").String())
	assert.Equal(t, "m", gjson.Get(sent, "model").String())
	assert.EqualValues(t, 64, gjson.Get(sent, "max_tokens").Int())
	assert.InDelta(t, 0.2, gjson.Get(sent, "temperature").Float(), 1e-9)
	assert.False(t, gjson.Get(sent, "top_p").Exists())

	msgs := gjson.Get(sent, "messages").Array()
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Get("role").String())
	assert.Equal(t, "first", msgs[0].Get("content").String())
	assert.Equal(t, "assistant", msgs[1].Get("role").String())
	assert.Equal(t, "user", msgs[2].Get("role").String())
	assert.Equal(t, "second", msgs[2].Get("content").String())

	_, err = client.GenerateText(context.Background(), ChatRequest{Prompt: "solo"})
	require.NoError(t, err)
	assert.False(t, gjson.Get(body.Load().(string), "messages").Exists())
}

func TestResponseFieldMissing(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no field", `{"answer":"x"}`},
		{"not a string", `{"response":42}`},
		{"not json", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, _ := capture(t, tt.reply)
			client, _ := newTestClient(t, testConfig(url, ""))
			_, err := client.GenerateText(context.Background(), ChatRequest{Prompt: "x"})
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.ParseError))
		})
	}
}

func TestAnalyzeImage(t *testing.T) {
	mock := newMock(t, "")
	client, _ := newTestClient(t, testConfig(mock.URL, ""))

	text, err := client.AnalyzeImage(context.Background(), "describe", "data:image/png;base64,QUJD")
	require.NoError(t, err)
	assert.Contains(t, text, "Prompt: describe")

	url, body := capture(t, `{"response":"seen"}`)
	client, _ = newTestClient(t, testConfig(url, ""))
	text, err = client.AnalyzeImage(context.Background(), "what", "QUJD")
	require.NoError(t, err)
	assert.Equal(t, "seen", text)
	assert.Equal(t, "QUJD", gjson.Get(body.Load().(string), "image").String())
	assert.Equal(t, "what", gjson.Get(body.Load().(string), "prompt").String())
}

func TestServerMetadata(t *testing.T) {
	mock := newMock(t, "")
	client, _ := newTestClient(t, testConfig(mock.URL, ""))
	ctx := context.Background()

	info, err := client.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, mockserver.Version, info.ServerVersion)
	assert.Equal(t, mockserver.Mode, info.Mode)
	assert.Equal(t, 4096, info.Capabilities.MaxContextWindow)
	assert.InDelta(t, 8, info.Capabilities.VRAMGB, 1e-9)

	models, err := client.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models.Models, 1)
	assert.Equal(t, mockserver.ModelID, models.Active)
	assert.Equal(t, 4096, models.Models[0].ContextLength)
}

func TestUploadLogs(t *testing.T) {
	mock := newMock(t, "")
	client, _ := newTestClient(t, testConfig(mock.URL, ""))

	name, err := client.UploadLogs(context.Background(), "dev 1", "", "hello\nworld")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "mobile_dev_1_"))
	assert.True(t, strings.HasSuffix(name, ".log"))

	_, err = client.UploadLogs(context.Background(), "", "", "x")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.ClientError))
}
