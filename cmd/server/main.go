/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ANEUPI finance reconciliation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load .env and the environment
  2. Build the zap logger
  3. Open SQLite and apply migrations
  4. Load rule sheets (RULES_DIR) over the built-in kinds
  5. Build one service per kind, the audit publisher and the scheduler
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     Path of the .env file (default: .env, missing is fine)
  -port    HTTP server port, overrides PORT
  -db      SQLite database path, overrides DB_PATH
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running sync)
  2. Stop accepting new connections
  3. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  4. Close the audit publisher and the database

EXAMPLES:
  # Run with file database
  JWT_SECRET=... ./server -db="./data/aneupi.db"

  # Run with in-memory database on another port
  JWT_SECRET=... ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/aneupi/finance-engine/api"
	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/config"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/events"
	"github.com/aneupi/finance-engine/factory"
	"github.com/aneupi/finance-engine/generic"
	"github.com/aneupi/finance-engine/logging"
	"github.com/aneupi/finance-engine/metrics"
	"github.com/aneupi/finance-engine/store/sqlite"
	"go.uber.org/zap"
)

// kindPaths maps each kind to its URL segment.
var kindPaths = []struct {
	kind generic.KindID
	path string
}{
	{balances.KindID, "balances"},
	{earnings.KindID, "institutional-earnings"},
}

func main() {
	// Flags
	envFile := flag.String("env", ".env", "Path of the .env file")
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Rule sheets replace the built-in kind definitions
	if cfg.RulesDir != "" {
		kinds, err := factory.NewRuleFactory().LoadDir(cfg.RulesDir)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		for _, k := range kinds {
			generic.RegisterKind(k)
			logger.Info("rule sheet loaded", zap.String("kind", string(k.ID)), zap.String("dir", cfg.RulesDir))
		}
	}

	m := metrics.New()

	var (
		routes   []api.KindRoute
		services []*generic.Service
	)
	for _, kp := range kindPaths {
		kind, ok := generic.LookupKind(kp.kind)
		if !ok {
			return fmt.Errorf("%w: %s", generic.ErrUnknownKind, kp.kind)
		}
		svc := generic.NewService(store, kind,
			generic.WithLogger(logger),
			generic.WithObserver(m))
		routes = append(routes, api.KindRoute{Path: kp.path, Service: svc})
		services = append(services, svc)
	}

	// Audit events
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		publisher = amqpPub
	}
	defer publisher.Close()

	handler, err := api.NewHandler(api.Deps{
		Kinds:       routes,
		Sources:     store,
		Auth:        api.NewAuthenticator(cfg.JWTSecret),
		Limiter:     api.NewAdminLimiter(cfg.AdminRateLimit, cfg.AdminRateBurst),
		Publisher:   publisher,
		Metrics:     m,
		Health:      store,
		Logger:      logger,
		CORSOrigins: cfg.AllowedOrigins(),
	})
	if err != nil {
		return err
	}

	// Scheduler
	scheduler := api.NewSyncScheduler(services, m, logger)
	if cfg.SyncEnabled() {
		if err := scheduler.Start(cfg.SyncSchedule); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
