/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Budgeteer auto-apply server. Handles
  configuration, dependency injection, the startup auto-apply run, and
  graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + BUDGETEER_* env)
  2. Parse command-line flags (flags win over config)
  3. Initialize SQLite store
  4. Optionally seed the demo dataset
  5. Configure HTTP router
  6. Trigger the one-shot startup auto-apply
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default from config, 8080)
  -db      SQLite database path. Use ":memory:" for in-memory.
  -seed    Seed the demo tenant before serving

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Startup auto-apply
  - config/config.go: Configuration surface
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/iMuhammadMustafa/Budgeteer-sub007/api"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/config"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/engine"
	"github.com/iMuhammadMustafa/Budgeteer-sub007/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags win over config file and env.
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	seed := flag.Bool("seed", cfg.AutoApply.SeedDemo, "seed the demo tenant before serving")
	flag.Parse()

	log := newLogger(cfg.Log)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", *dbPath).Msg("failed to initialize database")
	}
	defer store.Close()

	if *seed {
		if err := api.SeedDemoData(context.Background(), store); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
		log.Info().Str("tenant", string(api.DemoTenant)).Msg("demo data seeded")
	}

	// Initialize handler and router
	handler := api.NewHandler(store, store, log)
	router := api.NewRouter(handler)

	// One-shot auto-apply on startup
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := api.NewStartupScheduler(handler.Orchestrator, api.SchedulerConfig{
		Enabled: cfg.AutoApply.Enabled,
		Delay:   cfg.AutoApply.Delay(),
	}, log)
	scheduler.Trigger(rootCtx, engine.TenantID(cfg.AutoApply.Tenant))

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	<-rootCtx.Done()

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(level).With().Timestamp().Logger()
}
