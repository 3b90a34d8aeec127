// Package data opens the session store backend selected by configuration.
package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/parallax-connect/internal/chat/store"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/pkg/database"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/pkg/minio"
	pkgredis "github.com/lk2023060901/parallax-connect/internal/pkg/redis"
	"github.com/lk2023060901/parallax-connect/internal/pkg/workerpool"
	"go.uber.org/zap"
)

// Data holds the opened session store and whatever clients back it
type Data struct {
	Store  store.Store
	Driver string

	DB          *database.DB
	RedisClient *pkgredis.Client
	MinIOClient *minio.Client
	Pool        *workerpool.Pool
}

// NewData opens config.Store.Driver. The returned cleanup closes every
// client that was opened.
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	if log == nil {
		log = logger.NewNop()
	}
	d := &Data{Driver: config.Store.Driver}

	switch config.Store.Driver {
	case conf.StoreMemory, "":
		d.Store = store.NewMemoryStore()

	case conf.StoreRedis:
		client, err := initRedis(config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		d.RedisClient = client
		d.Store = store.NewRedisStore(client, config.Store.KeyPrefix)

	case conf.StorePostgres:
		db, err := initDB(config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init database: %w", err)
		}
		s, err := store.NewGormStore(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		d.DB = db
		d.Store = s

	case conf.StoreMinIO:
		client, err := initMinIO(config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init minio: %w", err)
		}
		pool, err := workerpool.New(workerpool.DefaultConfig(), log.Zap())
		if err != nil {
			return nil, nil, err
		}
		s, err := store.NewObjectStore(context.Background(), client, config.MinIO.Bucket, pool)
		if err != nil {
			pool.Release()
			return nil, nil, fmt.Errorf("failed to init minio: %w", err)
		}
		d.MinIOClient = client
		d.Pool = pool
		d.Store = s

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}

	log.Info("session store ready", zap.String("driver", d.Driver))

	cleanup := func() {
		log.Info("cleaning up data resources")

		if d.DB != nil {
			_ = d.DB.Close()
		}
		if d.RedisClient != nil {
			_ = d.RedisClient.Close()
		}
		if d.Pool != nil {
			d.Pool.Release()
		}
	}
	return d, cleanup, nil
}

func initRedis(config *conf.Config, log *logger.Logger) (*pkgredis.Client, error) {
	cfg := pkgredis.DefaultConfig()
	cfg.Addr = config.Redis.Addr
	cfg.Password = config.Redis.Password
	cfg.DB = config.Redis.DB
	return pkgredis.New(cfg, log)
}

func initDB(config *conf.Config, log *logger.Logger) (*database.DB, error) {
	cfg := database.DefaultConfig()
	cfg.Host = config.Database.Host
	cfg.Port = config.Database.Port
	cfg.User = config.Database.User
	cfg.Password = config.Database.Password
	cfg.DBName = config.Database.DBName
	cfg.SSLMode = config.Database.SSLMode
	return database.New(cfg, log)
}

func initMinIO(config *conf.Config, log *logger.Logger) (*minio.Client, error) {
	return minio.NewClient(&minio.Config{
		Endpoint:        config.MinIO.Endpoint,
		AccessKeyID:     config.MinIO.AccessKey,
		SecretAccessKey: config.MinIO.SecretKey,
		UseSSL:          config.MinIO.UseSSL,
		Region:          config.MinIO.Region,
	}, log.Zap())
}
