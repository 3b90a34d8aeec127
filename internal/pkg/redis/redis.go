package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	master redis.UniversalClient
}

// New 创建 Redis 客户端并检查连通性
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	client := NewWithUniversal(redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	}), log)
	client.config = cfg

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	client.logger.Info("redis client initialized successfully",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
	)

	return client, nil
}

// NewWithUniversal 包装已有的 go-redis 客户端
func NewWithUniversal(rc redis.UniversalClient, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		config: DefaultConfig(),
		logger: log.Named("redis"),
		master: rc,
	}
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.master.Ping(ctx).Err()
}

// Close 关闭客户端
func (c *Client) Close() error {
	if err := c.master.Close(); err != nil {
		c.logger.Error("close redis client failed", zap.Error(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// GetMasterClient 获取底层客户端（用于高级操作）
func (c *Client) GetMasterClient() redis.UniversalClient {
	return c.master
}
