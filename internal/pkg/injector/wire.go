//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"
	"github.com/lk2023060901/parallax-connect/internal/chat/service"
	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/data"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/transport"
)

// ProviderSet is the Wire provider set for the client
var ProviderSet = wire.NewSet(
	// Config
	conf.NewProvider,
	wire.Bind(new(transport.ConfigProvider), new(*conf.Provider)),

	// Transport
	transport.New,
	wire.Bind(new(service.ChatClient), new(*transport.Client)),

	// Data layer
	data.NewData,
	provideStore,

	// Session controller
	provideService,
)

// MockServerProviderSet is the Wire provider set for the mock server
var MockServerProviderSet = wire.NewSet(
	provideMockHandler,
	provideMockHTTPServer,
)

// InitializeApp initializes the client with Wire
func InitializeApp(config *conf.Config, log *logger.Logger) (*App, func(), error) {
	wire.Build(ProviderSet, newApp)
	return nil, nil, nil
}

// InitializeMockServer initializes the mock server with Wire
func InitializeMockServer(config *conf.Config, log *logger.Logger) *MockApp {
	wire.Build(MockServerProviderSet, newMockApp)
	return nil
}
