package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Z 有序集合成员
type Z = redis.Z

// Set 设置键值
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	err := c.master.Set(ctx, key, value, expiration).Err()
	if err != nil {
		c.logger.Error("redis set failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return err
}

// Get 获取键值，Key 不存在时返回 ErrNil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.master.Get(ctx, key).Result()
	if err != nil && !IsNil(err) {
		c.logger.Error("redis get failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return val, err
}

// MGet 批量获取键值，缺失的 Key 对应 nil
func (c *Client) MGet(ctx context.Context, keys ...string) ([]interface{}, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.master.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Error("redis mget failed",
			zap.Int("keys", len(keys)),
			zap.Error(err),
		)
	}
	return vals, err
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.master.Del(ctx, keys...).Result()
}

// ZRevRange 获取有序集合范围内的成员（按分数从大到小）
func (c *Client) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := c.master.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		c.logger.Error("redis zrevrange failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return vals, err
}

// ZCard 获取有序集合成员数
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return c.master.ZCard(ctx, key).Result()
}

// TxPipeline 创建事务 Pipeline
func (c *Client) TxPipeline() redis.Pipeliner {
	return c.master.TxPipeline()
}
