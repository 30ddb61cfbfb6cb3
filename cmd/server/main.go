/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Gami progression server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load config (defaults, YAML file, GAMI_* environment)
  3. Wire storage, canisters and identity via bootstrap
  4. Initialize the Manager from storage
  5. Start the profile sync scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: gami.yaml, optional)
  -port    HTTP server port, overrides config when set

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close storage
  5. Exit

EXAMPLES:
  # Run with defaults (sqlite gami.db, in-process canisters)
  ./server

  # Against a local replica
  GAMI_CANISTERS_MODE=gateway ./server -config=./gami.yaml

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Settings and environment variables
  - bootstrap/bootstrap.go: Dependency wiring
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/api"
	"github.com/warp/gami-engine/bootstrap"
	"github.com/warp/gami-engine/config"
)

func main() {
	// Flags
	configPath := flag.String("config", "gami.yaml", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	log := cfg.Log.NewLogger()

	ctx := context.Background()
	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		log.WithError(err).Fatal("wire dependencies")
	}
	defer app.Close()

	app.Manager.Initialize(ctx)

	handler := api.NewHandler(app.Manager)
	handler.Greeter = app.Greeter
	handler.Pinger = app

	var scheduler *api.ProfileSyncScheduler
	if cfg.Sync.Enabled {
		scheduler, err = api.NewProfileSyncScheduler(app.Manager, cfg.Sync.Schedule, log)
		if err != nil {
			log.WithError(err).Fatal("create profile sync scheduler")
		}
		scheduler.Start()
	}

	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Login blocks until the identity callback arrives.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Identity.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}
