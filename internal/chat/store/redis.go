package store

import (
	"context"
	"fmt"

	"github.com/lk2023060901/parallax-connect/internal/chat/transcript"
	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	pkgredis "github.com/lk2023060901/parallax-connect/internal/pkg/redis"
)

// RedisStore keeps each session as a JSON string under
// <prefix>:session:<id>, indexed by a sorted set <prefix>:sessions scored by
// timestamp.
type RedisStore struct {
	client *pkgredis.Client
	prefix string
}

// NewRedisStore creates a store on client. An empty prefix means "parallax".
func NewRedisStore(client *pkgredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "parallax"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisStore) indexKey() string {
	return r.prefix + ":sessions"
}

func (r *RedisStore) Save(ctx context.Context, s types.ChatSession) error {
	if err := checkID(s.ID); err != nil {
		return err
	}
	data, err := transcript.Marshal(s)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(s.ID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(), pkgredis.Z{Score: float64(s.Timestamp.UnixMilli()), Member: s.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (types.ChatSession, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id))
	if pkgredis.IsNil(err) {
		return types.ChatSession{}, ErrNotFound
	}
	if err != nil {
		return types.ChatSession{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return transcript.Unmarshal([]byte(data))
}

func (r *RedisStore) List(ctx context.Context) ([]types.ChatSession, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}

	out := make([]types.ChatSession, 0, len(vals))
	for i, v := range vals {
		data, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		s, err := transcript.Unmarshal([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("store: list %s: %w", ids[i], err)
		}
		out = append(out, s)
	}
	Sort(out)
	return out, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.sessionKey(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}
