package conf

import "github.com/lk2023060901/parallax-connect/internal/pkg/logger"

// LoggerConfig converts the log section into a logger configuration
func (c LogConfig) LoggerConfig() *logger.Config {
	return &logger.Config{
		Level:   c.Level,
		Format:  c.Format,
		Output:  c.Output,
		Console: c.Console,
		File: logger.FileConfig{
			Filename:   c.File.Filename,
			MaxSize:    c.File.MaxSize,
			MaxAge:     c.File.MaxAge,
			MaxBackups: c.File.MaxBackups,
			Compress:   c.File.Compress,
		},
		EnableCaller:     c.EnableCaller,
		EnableStacktrace: c.EnableStacktrace,
	}
}
