package injector

import (
	"net/http"

	"github.com/lk2023060901/parallax-connect/internal/chat/service"
	"github.com/lk2023060901/parallax-connect/internal/chat/store"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/data"
	"github.com/lk2023060901/parallax-connect/internal/mockserver"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/server"
	"github.com/lk2023060901/parallax-connect/internal/transport"
)

// Provider functions shared by wire.go and wire_gen.go

func provideStore(d *data.Data) store.Store {
	return d.Store
}

func provideService(client service.ChatClient, st store.Store, config *conf.Config, log *logger.Logger) *service.Service {
	return service.New(client, st, log, service.WithRetention(config.Store.RetentionLimit))
}

func provideMockHandler(config *conf.Config, log *logger.Logger) http.Handler {
	return mockserver.New(config.MockServer, log).Handler()
}

func provideMockHTTPServer(config *conf.Config, log *logger.Logger, handler http.Handler) *server.HTTPServer {
	return server.NewHTTPServer(config.MockServer, log, handler)
}

func newApp(
	config *conf.Config,
	provider *conf.Provider,
	log *logger.Logger,
	client *transport.Client,
	d *data.Data,
	svc *service.Service,
) (*App, func()) {
	cleanup := func() {
		_ = client.Close()
	}

	return &App{
		Config:   config,
		Provider: provider,
		Logger:   log,
		Client:   client,
		Data:     d,
		Service:  svc,
		cleanup:  cleanup,
	}, cleanup
}

func newMockApp(config *conf.Config, log *logger.Logger, httpServer *server.HTTPServer) *MockApp {
	return &MockApp{Config: config, Logger: log, HTTPServer: httpServer}
}
