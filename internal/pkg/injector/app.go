package injector

import (
	"github.com/lk2023060901/parallax-connect/internal/chat/service"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/data"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/server"
	"github.com/lk2023060901/parallax-connect/internal/transport"
)

// App encapsulates the client side dependencies
type App struct {
	Config   *conf.Config
	Provider *conf.Provider
	Logger   *logger.Logger
	Client   *transport.Client
	Data     *data.Data
	Service  *service.Service
	cleanup  func()
}

// Cleanup releases all resources
func (a *App) Cleanup() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// MockApp is the standalone mock Parallax server
type MockApp struct {
	Config     *conf.Config
	Logger     *logger.Logger
	HTTPServer *server.HTTPServer
}
