package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/pkg/injector"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "", "config file path")
	port       = flag.Int("port", 0, "listen port (overrides mock_server.port)")
	password   = flag.String("password", "", "required x-password value (overrides mock_server.password)")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *port != 0 {
		config.MockServer.Port = *port
	}
	if *password != "" {
		config.MockServer.Password = *password
	}

	log, err := logger.New(config.Log.LoggerConfig())
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("config loaded successfully",
		zap.Bool("password_protected", config.MockServer.Password != ""),
		zap.String("log_dir", config.MockServer.LogDir),
	)

	app := injector.InitializeMockServer(config, log)

	go func() {
		if err := app.HTTPServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("mock server started", zap.String("addr", app.HTTPServer.Addr()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.HTTPServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
