package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/database"
	"github.com/lk2023060901/parallax-connect/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/parallax-connect/internal/pkg/redis"
	"github.com/lk2023060901/parallax-connect/internal/pkg/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func session(id string, age time.Duration, important bool) types.ChatSession {
	thinking := "weighing options"
	ts := base.Add(-age)
	return types.ChatSession{
		ID:          id,
		Title:       "title " + id,
		Timestamp:   ts,
		IsImportant: important,
		Messages: []types.ChatMessage{
			types.NewUserMessage("hello", ts, "img/a.png"),
			{
				Text:            "hi there",
				Timestamp:       ts.Add(time.Second),
				AttachmentPaths: []string{},
				ThinkingContent: &thinking,
				SearchMetadata:  map[string]any{"query": "q", "results": []any{map[string]any{"title": "t", "url": "u"}}},
			},
		},
	}
}

func ids(sessions []types.ChatSession) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

// testStore runs the behaviour every backend must share
func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotFound)
	})

	t.Run("save and get", func(t *testing.T) {
		want := session("a", 0, false)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want.Title, got.Title)
		assert.True(t, want.Timestamp.Equal(got.Timestamp))
		require.Len(t, got.Messages, 2)
		assert.Equal(t, "hello", got.Messages[0].Text)
		assert.True(t, got.Messages[0].IsUser)
		assert.Equal(t, []string{"img/a.png"}, got.Messages[0].AttachmentPaths)
		assert.Equal(t, "weighing options", got.Messages[1].Thinking())
		assert.Equal(t, "q", got.Messages[1].SearchMetadata["query"])
	})

	t.Run("save replaces", func(t *testing.T) {
		updated := session("a", 0, true)
		updated.Title = "renamed"
		require.NoError(t, s.Save(ctx, updated))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
		assert.True(t, got.IsImportant)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("list order", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, session("b", time.Hour, false)))
		require.NoError(t, s.Save(ctx, session("c", time.Minute, false)))
		require.NoError(t, s.Save(ctx, session("d", 2*time.Hour, true)))

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d", "c", "b"}, ids(all))
	})

	t.Run("prune keeps important", func(t *testing.T) {
		n, err := Prune(ctx, s, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d"}, ids(all))
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "a"))
		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		assert.Error(t, s.Save(ctx, types.ChatSession{}))
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess := session("x", 0, false)
	require.NoError(t, s.Save(ctx, sess))

	sess.Messages[0].Text = "mutated"
	got, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Messages[0].Text)

	got.Messages[1].SearchMetadata["query"] = "changed"
	again, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "q", again.Messages[1].SearchMetadata["query"])
}

func TestSort(t *testing.T) {
	sessions := []types.ChatSession{
		session("old", time.Hour, false),
		session("pinned-old", 3*time.Hour, true),
		session("new", 0, false),
		session("pinned-new", time.Minute, true),
	}
	Sort(sessions)
	assert.Equal(t, []string{"pinned-new", "pinned-old", "new", "old"}, ids(sessions))
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		stored []types.ChatSession
		want   []string
		pruned int
	}{
		{
			name:   "disabled",
			limit:  0,
			stored: []types.ChatSession{session("a", 0, false), session("b", time.Hour, false)},
			want:   []string{"a", "b"},
		},
		{
			name:   "under limit",
			limit:  5,
			stored: []types.ChatSession{session("a", 0, false)},
			want:   []string{"a"},
		},
		{
			name:  "drops oldest",
			limit: 2,
			stored: []types.ChatSession{
				session("a", 0, false),
				session("b", time.Hour, false),
				session("c", 2*time.Hour, false),
			},
			want:   []string{"a", "b"},
			pruned: 1,
		},
		{
			name:  "important over limit",
			limit: 1,
			stored: []types.ChatSession{
				session("a", 0, true),
				session("b", time.Hour, true),
				session("c", 2*time.Hour, false),
			},
			want:   []string{"a", "b"},
			pruned: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := NewMemoryStore()
			for _, sess := range tt.stored {
				require.NoError(t, s.Save(ctx, sess))
			}
			n, err := Prune(ctx, s, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.pruned, n)

			all, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(all))
		})
	}
}

func TestMessagesJSON(t *testing.T) {
	var m MessagesJSON
	require.NoError(t, m.Scan([]byte(`[{"text":"hi"}]`)))
	require.Len(t, m, 1)

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)
	assert.Error(t, m.Scan(42))

	v, err := MessagesJSON(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "sessions/abc.json", objectName("abc"))
}

func uniquePrefix(t *testing.T) string {
	return fmt.Sprintf("parallax-test-%d", time.Now().UnixNano())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("PARALLAX_TEST_REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("PARALLAX_TEST_REDIS_ADDR not set")
	}
	cfg := pkgredis.DefaultConfig()
	cfg.Addr = addr
	cfg.DB = 15
	client, err := pkgredis.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	testStore(t, NewRedisStore(client, uniquePrefix(t)))
}

func TestGormStore(t *testing.T) {
	dsnHost := os.Getenv("PARALLAX_TEST_POSTGRES_HOST")
	if dsnHost == "" || testing.Short() {
		t.Skip("PARALLAX_TEST_POSTGRES_HOST not set")
	}
	cfg := database.DefaultConfig()
	cfg.Host = dsnHost
	cfg.Password = os.Getenv("PARALLAX_TEST_POSTGRES_PASSWORD")
	db, err := database.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewGormStore(db)
	require.NoError(t, err)
	require.NoError(t, db.Exec("DELETE FROM chat_sessions").Error)
	testStore(t, s)
}

func TestObjectStore(t *testing.T) {
	endpoint := os.Getenv("PARALLAX_TEST_MINIO_ENDPOINT")
	if endpoint == "" || testing.Short() {
		t.Skip("PARALLAX_TEST_MINIO_ENDPOINT not set")
	}
	client, err := minio.NewClient(&minio.Config{
		Endpoint:        endpoint,
		AccessKeyID:     os.Getenv("PARALLAX_TEST_MINIO_ACCESS_KEY"),
		SecretAccessKey: os.Getenv("PARALLAX_TEST_MINIO_SECRET_KEY"),
	}, nil)
	require.NoError(t, err)

	pool, err := workerpool.New(&workerpool.Config{Workers: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	s, err := NewObjectStore(context.Background(), client, uniquePrefix(t), pool)
	require.NoError(t, err)
	testStore(t, s)
}
