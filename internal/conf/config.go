package conf

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PARALLAX_SERVER_BASE_URL
const EnvPrefix = "PARALLAX"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	MockServer MockServerConfig `mapstructure:"mock_server"`
}

// ServerConfig points the client at a Parallax server
type ServerConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Password string `mapstructure:"password"`
}

// TransportConfig holds per-phase timeouts and the unary retry policy
type TransportConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	Console          string        `mapstructure:"console"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

// StoreConfig selects the session store backend
type StoreConfig struct {
	Driver         string `mapstructure:"driver"` // memory, redis, postgres, minio
	RetentionLimit int    `mapstructure:"retention_limit"`
	KeyPrefix      string `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// MockServerConfig configures the local stand-in for a Parallax server
type MockServerConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	LogDir    string        `mapstructure:"log_dir"`
	MaxLogs   int           `mapstructure:"max_logs"`
	WordDelay time.Duration `mapstructure:"word_delay"`
	StepDelay time.Duration `mapstructure:"step_delay"`
}

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMinIO    = "minio"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.password", "")

	v.SetDefault("transport.connect_timeout", 30*time.Second)
	v.SetDefault("transport.send_timeout", 30*time.Second)
	v.SetDefault("transport.receive_timeout", 30*time.Second)
	v.SetDefault("transport.max_retries", 3)
	v.SetDefault("transport.retry_delay", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.console", "stderr")
	v.SetDefault("log.enablecaller", true)
	v.SetDefault("log.enablestacktrace", false)
	v.SetDefault("log.file.filename", "logs/parallax-connect.log")
	v.SetDefault("log.file.maxsize", 20)
	v.SetDefault("log.file.maxage", 14)
	v.SetDefault("log.file.maxbackups", 5)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.retention_limit", 100)
	v.SetDefault("store.key_prefix", "parallax")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "parallax")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "parallax-sessions")
	v.SetDefault("minio.region", "")

	v.SetDefault("mock_server.host", "0.0.0.0")
	v.SetDefault("mock_server.port", 8000)
	v.SetDefault("mock_server.password", "")
	v.SetDefault("mock_server.log_dir", "applogs")
	v.SetDefault("mock_server.max_logs", 20)
	v.SetDefault("mock_server.word_delay", 50*time.Millisecond)
	v.SetDefault("mock_server.step_delay", 300*time.Millisecond)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Server.BaseURL = NormalizeBaseURL(config.Server.BaseURL)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfig reads path (YAML, or anything viper understands) on top of the
// defaults. Environment variables and a .env file in the working directory
// override file values. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return decode(v)
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg, _ := decode(newViper(""))
	return cfg
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NormalizeBaseURL trims whitespace and trailing slashes
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// Validate checks values that would otherwise fail much later
func (c *Config) Validate() error {
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("conf: server.base_url %q must be an http(s) URL", c.Server.BaseURL)
		}
	}

	t := c.Transport
	if t.ConnectTimeout < 0 || t.SendTimeout < 0 || t.ReceiveTimeout < 0 {
		return errors.New("conf: transport timeouts must be >= 0")
	}
	if t.MaxRetries < 0 {
		return errors.New("conf: transport.max_retries must be >= 0")
	}
	if t.RetryDelay < 0 {
		return errors.New("conf: transport.retry_delay must be >= 0")
	}

	switch c.Store.Driver {
	case StoreMemory, StoreRedis, StorePostgres, StoreMinIO:
	default:
		return fmt.Errorf("conf: store.driver %q must be one of: memory, redis, postgres, minio", c.Store.Driver)
	}
	if c.Store.RetentionLimit < 0 {
		return errors.New("conf: store.retention_limit must be >= 0")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
