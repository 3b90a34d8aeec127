package conf

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"go.uber.org/zap"
)

// Provider hands out the current configuration. Readers get an immutable
// snapshot; Update swaps the whole value so no reader sees half of a
// reconfiguration.
type Provider struct {
	current atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(*Config)
	overrides []func(*Config)
}

// NewProvider creates a provider holding a copy of cfg
func NewProvider(cfg *Config) *Provider {
	if cfg == nil {
		cfg = Default()
	}
	p := &Provider{}
	c := *cfg
	p.current.Store(&c)
	return p
}

// Load returns the current snapshot. Callers must not modify it.
func (p *Provider) Load() *Config {
	return p.current.Load()
}

// Update replaces the configuration with a copy of cfg. Registered
// overrides are applied to the copy before it is published.
func (p *Provider) Update(cfg *Config) {
	c := *cfg
	p.mu.Lock()
	for _, fn := range p.overrides {
		fn(&c)
	}
	listeners := append([]func(*Config){}, p.listeners...)
	p.mu.Unlock()

	c.Server.BaseURL = NormalizeBaseURL(c.Server.BaseURL)
	p.current.Store(&c)
	for _, fn := range listeners {
		fn(&c)
	}
}

// SetServer replaces the server address and shared secret together. A
// trailing slash on baseURL is dropped.
func (p *Provider) SetServer(baseURL, password string) {
	c := *p.Load()
	c.Server = ServerConfig{BaseURL: NormalizeBaseURL(baseURL), Password: password}
	p.Update(&c)
}

// Override registers fn to patch every configuration the provider
// publishes, including file reloads. It is applied to the current
// snapshot straight away. Overrides also win over SetServer.
func (p *Provider) Override(fn func(*Config)) {
	p.mu.Lock()
	p.overrides = append(p.overrides, fn)
	p.mu.Unlock()
	p.Update(p.Load())
}

// OnChange registers fn to run after every Update
func (p *Provider) OnChange(fn func(*Config)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Watch reloads path into the provider whenever the file changes. Invalid
// edits are logged and the previous configuration stays in effect.
func (p *Provider) Watch(path string, log *logger.Logger) error {
	if path == "" {
		return fmt.Errorf("conf: watch needs a config file")
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Warn("ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		p.Update(cfg)
		log.Info("config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()
	return nil
}
