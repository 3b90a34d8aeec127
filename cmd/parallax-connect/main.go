// Command parallax-connect is a terminal client for a Parallax server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lk2023060901/parallax-connect/internal/conf"
	"github.com/lk2023060901/parallax-connect/internal/pkg/injector"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "", "config file path")
	serverURL  = flag.String("server", "", "server base URL (overrides server.base_url)")
	password   = flag.String("password", "", "server password (overrides server.password)")
	watch      = flag.Bool("watch", false, "reload the config file when it changes")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(2)
	}
	if *serverURL != "" {
		config.Server.BaseURL = conf.NormalizeBaseURL(*serverURL)
	}
	if *password != "" {
		config.Server.Password = *password
	}

	log, err := logger.New(config.Log.LoggerConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(2)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Error("failed to initialize", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	if *serverURL != "" || *password != "" {
		url, secret := *serverURL, *password
		app.Provider.Override(func(c *conf.Config) {
			if url != "" {
				c.Server.BaseURL = url
			}
			if secret != "" {
				c.Server.Password = secret
			}
		})
	}
	if *watch && *configFile != "" {
		if err := app.Provider.Watch(*configFile, log); err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &env{app: app, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	code := run(ctx, env, flag.Args())
	if code != 0 {
		cleanup()
		log.Sync()
		os.Exit(code)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: parallax-connect [flags] <command> [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-12s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nsessions live in store.driver; the default memory store is lost when the process exits\n")
	fmt.Fprintf(flag.CommandLine.Output(), "\nflags:\n")
	flag.PrintDefaults()
}
