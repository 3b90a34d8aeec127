package transcript

import (
	"strings"
	"testing"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/stream"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestFoldScenario(t *testing.T) {
	body := "data: {\"type\":\"thinking\",\"content\":\"step1\"}\n" +
		"data: {\"type\":\"thinking\",\"content\":\" step2\"}\n" +
		"data: {\"type\":\"content\",\"content\":\"Hello\"}\n" +
		"data: {\"type\":\"done\",\"metadata\":{\"tokens\":5}}\n"

	tr := New(nil, WithClock(fixedClock()))
	tr.AppendUser("hi")
	require.NoError(t, tr.Begin())

	var done bool
	for _, ev := range stream.DecodeAll([]byte(body), nil) {
		var err error
		done, err = tr.Fold(ev)
		require.NoError(t, err)
	}
	require.True(t, done)
	assert.False(t, tr.Streaming())

	msg, ok := tr.Last()
	require.True(t, ok)
	assert.False(t, msg.IsUser)
	assert.Equal(t, "Hello", msg.Text)
	require.NotNil(t, msg.ThinkingContent)
	assert.Equal(t, "step1 step2", *msg.ThinkingContent)
	assert.Nil(t, msg.SearchMetadata)
}

func TestFoldAssociative(t *testing.T) {
	parts := []string{"The ", "quick ", "", "brown ", "fox", " 🦊"}

	oneByOne := New(nil)
	for _, p := range parts {
		_, err := oneByOne.Fold(types.StreamEvent{Kind: types.EventContent, Content: p})
		require.NoError(t, err)
	}
	_, err := oneByOne.Fold(types.DoneEvent(nil))
	require.NoError(t, err)

	combined := New(nil)
	_, err = combined.Fold(types.StreamEvent{Kind: types.EventContent, Content: strings.Join(parts, "")})
	require.NoError(t, err)
	_, err = combined.Fold(types.DoneEvent(nil))
	require.NoError(t, err)

	a, _ := oneByOne.Last()
	b, _ := combined.Last()
	assert.Equal(t, b.Text, a.Text)
	assert.Equal(t, "The quick brown fox 🦊", a.Text)
}

func TestFoldAttachesSearchMetadata(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Begin())

	results := map[string]any{"query": "go iterators", "results": []any{map[string]any{"title": "Go 1.23"}}}
	_, err := tr.Fold(types.StreamEvent{Kind: types.EventSearchResults, Metadata: results})
	require.NoError(t, err)
	_, err = tr.Fold(types.StreamEvent{Kind: types.EventContent, Content: "answer"})
	require.NoError(t, err)

	mid, _ := tr.Last()
	assert.Nil(t, mid.SearchMetadata)

	_, err = tr.Fold(types.DoneEvent(nil))
	require.NoError(t, err)
	msg, _ := tr.Last()
	assert.Equal(t, results, msg.SearchMetadata)
}

func TestFoldErrorKeepsPartialText(t *testing.T) {
	tr := New(nil)
	require.NoError(t, tr.Begin())
	_, _ = tr.Fold(types.StreamEvent{Kind: types.EventContent, Content: "partial"})
	done, err := tr.Fold(types.ErrorEvent("boom"))
	require.NoError(t, err)
	assert.True(t, done)
	msg, _ := tr.Last()
	assert.Equal(t, "partial", msg.Text)

	empty := New(nil)
	require.NoError(t, empty.Begin())
	_, _ = empty.Fold(types.ErrorEvent("boom"))
	msg, _ = empty.Last()
	assert.Equal(t, "Error: boom", msg.Text)
}

func TestFoldWithoutActiveMessage(t *testing.T) {
	tr := New(nil)
	_, err := tr.Fold(types.DoneEvent(nil))
	assert.ErrorIs(t, err, ErrNotStreaming)

	require.NoError(t, tr.Begin())
	assert.ErrorIs(t, tr.Begin(), ErrAlreadyStreaming)
}

func TestInlineThinkBlock(t *testing.T) {
	tr := New(nil)
	_, _ = tr.Fold(types.StreamEvent{Kind: types.EventContent, Content: "<think>plan it</think>\n\nDone."})
	_, _ = tr.Fold(types.DoneEvent(nil))

	msg, _ := tr.Last()
	assert.Equal(t, "Done.", msg.Text)
	assert.Equal(t, "plan it", msg.Thinking())
}

func TestAppendNeverReordersOrDedupes(t *testing.T) {
	clock := fixedClock()
	tr := New(nil, WithClock(clock))
	tr.AppendUser("same")
	tr.AppendUser("same")
	tr.Append(types.NewAssistantMessage("reply", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "same", msgs[0].Text)
	assert.Equal(t, "same", msgs[1].Text)
	assert.Equal(t, "reply", msgs[2].Text)
	assert.True(t, msgs[0].Timestamp.Before(msgs[1].Timestamp))
}

func TestHistorySkipsOpenMessage(t *testing.T) {
	tr := New(nil)
	tr.AppendUser("q1")
	tr.Append(types.NewAssistantMessage("a1", time.Now()))
	tr.AppendUser("q2")
	require.NoError(t, tr.Begin())
	_, _ = tr.Fold(types.StreamEvent{Kind: types.EventContent, Content: "partial"})

	history := tr.History()
	require.Len(t, history, 3)
	assert.Equal(t, "q2", history[2].Text)
	assert.Equal(t, 4, tr.Len())
}

func TestSplitThinking(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		thinking string
		rest     string
		ok       bool
	}{
		{name: "no block", text: "hello", rest: "hello"},
		{name: "unterminated", text: "<think>still going", rest: "<think>still going"},
		{name: "block", text: "  <think> a </think> b", thinking: "a", rest: "b", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thinking, rest, ok := SplitThinking(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.thinking, thinking)
			assert.Equal(t, tt.rest, rest)
		})
	}
}
