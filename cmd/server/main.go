/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Cadrimil per-diem API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load config file, apply environment
  2. Initialize logging
  3. Open the mission store (sqlite, postgres or memory)
  4. Load the rate table (remote -> cache -> built-in) once, then start the
     refresher for later reloads
  5. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: cadrimil.yaml, optional)
  -port    HTTP server port (overrides server.addr)
  -db      SQLite database path (overrides storage.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the rate table refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/cadrimil.db"

  # Run against PostgreSQL
  CADRIMIL_DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

ENVIRONMENT:
  CADRIMIL_ADDR, CADRIMIL_DB_DRIVER, CADRIMIL_DB_PATH, DATABASE_URL,
  CADRIMIL_RATES_URL, CADRIMIL_RATES_FILE, CADRIMIL_LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - internal/config/config.go: Configuration
  - ratesource/provider.go: Rate table loading
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

	"go.uber.org/zap"

	"github.com/cadrimil/engine/api"
	"github.com/cadrimil/engine/diaria"
	"github.com/cadrimil/engine/internal/config"
	"github.com/cadrimil/engine/internal/logging"
	"github.com/cadrimil/engine/internal/storage"
	"github.com/cadrimil/engine/ratesource"
)

func main() {
	// Flags
	configPath := flag.String("config", "cadrimil.yaml", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if *port != 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.Named("server")

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()

	// Initialize store
	st, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer st.Close()
	log.Info("store ready", zap.String("driver", cfg.Storage.Driver))

	// Rate table
	opts := []ratesource.Option{ratesource.WithDefaultFallback(cfg.RateSource.DefaultFallback)}
	if st.Cache != nil {
		opts = append(opts, ratesource.WithCache(st.Cache))
	}
	rates := ratesource.NewProvider(cfg.RateSource.Fetcher(), opts...)
	if err := rates.Load(ctx); err != nil {
		log.Warn("rate table not fetched", zap.Error(err))
	}
	log.Info("rate table loaded", zap.String("source", string(rates.Status().Source)))
	rates.OnChange(func(table diaria.RateTable) {
		log.Info("rate table replaced",
			zap.String("source", string(rates.Status().Source)),
			zap.Int("groups", len(table.GroupKeys())),
		)
	})

	refresher := ratesource.NewRefresher(rates, cfg.RateSource.RefreshInterval)
	refresher.Start()
	defer refresher.Stop()

	// Handler and router
	handler := api.NewHandler(st.Missions, rates)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
