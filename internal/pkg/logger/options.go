package logger

// Option defines a function to modify logger configuration
type Option func(*Config)

// WithLevel sets the log level
func WithLevel(level string) Option {
	return func(c *Config) {
		c.Level = level
	}
}

// WithFormat sets the log format (json or console)
func WithFormat(format string) Option {
	return func(c *Config) {
		c.Format = format
	}
}

// WithOutput sets the log output (console, file, or both)
func WithOutput(output string) Option {
	return func(c *Config) {
		c.Output = output
	}
}

// WithConsole picks the console stream (stdout or stderr)
func WithConsole(stream string) Option {
	return func(c *Config) {
		c.Console = stream
	}
}

// WithFile sets the rotated log file path
func WithFile(filename string) Option {
	return func(c *Config) {
		c.File.Filename = filename
	}
}

func WithCaller(enabled bool) Option {
	return func(c *Config) {
		c.EnableCaller = enabled
	}
}

func WithStacktrace(enabled bool) Option {
	return func(c *Config) {
		c.EnableStacktrace = enabled
	}
}

// NewWithOptions creates a new logger with options
func NewWithOptions(opts ...Option) (*Logger, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}

// Development returns a debug level, colored console logger on stderr.
func Development() (*Logger, error) {
	return NewWithOptions(
		WithLevel("debug"),
		WithFormat("console"),
		WithOutput("console"),
		WithConsole("stderr"),
		WithCaller(true),
	)
}

// Production returns an info level JSON logger writing to a rotated file
// and to stdout, the layout the mock server runs with.
func Production(filename string) (*Logger, error) {
	return NewWithOptions(
		WithLevel("info"),
		WithFormat("json"),
		WithOutput("both"),
		WithConsole("stdout"),
		WithFile(filename),
		WithCaller(true),
		WithStacktrace(true),
	)
}
