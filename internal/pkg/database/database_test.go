package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default config", func(*Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"missing user", func(c *Config) { c.User = "" }, true},
		{"missing name", func(c *Config) { c.DBName = "" }, true},
		{"bad ssl mode", func(c *Config) { c.SSLMode = "sometimes" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"idle exceeds open", func(c *Config) { c.MaxIdleConns = 20; c.MaxOpenConns = 5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "pw"
	assert.Equal(t, "host=localhost port=5432 user=postgres password=pw dbname=parallax sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))

	gl := newGormLogger(log, &Config{LogLevel: "warn", SlowThreshold: 10 * time.Millisecond})
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), sql, nil)
	assert.Zero(t, logs.Len(), "fast queries are not logged at warn")

	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Equal(t, 1, logs.FilterMessage("slow SQL query").Len())

	gl.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.FilterMessage("database query error").Len())

	gl.Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterMessage("database query error").Len())

	gl.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterMessage("database query error").Len())
}

func TestIsRecordNotFoundError(t *testing.T) {
	assert.True(t, IsRecordNotFoundError(gorm.ErrRecordNotFound))
	assert.False(t, IsRecordNotFoundError(errors.New("x")))
	assert.False(t, IsRecordNotFoundError(nil))
}
