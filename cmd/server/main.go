// Command server runs the strategy library control plane's HTTP API.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/strategylib/control-plane/internal/api"
	"github.com/strategylib/control-plane/internal/api/handlers"
	"github.com/strategylib/control-plane/internal/config"
	"github.com/strategylib/control-plane/internal/deployment"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/logging"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/registry"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/swap"
	"github.com/strategylib/control-plane/internal/validation"
)

const serviceName = "strategy-library-control-plane"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	skipMigrations := flag.Bool("skip-migrations", false, "do not apply pending migrations at startup")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s\n", serviceName)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	slog.SetDefault(logger)

	logger.Info("starting control plane", "service", serviceName, "profile", cfg.Profile)

	ctx := context.Background()

	if !*skipMigrations {
		if err := applyMigrations(ctx, cfg, logger); err != nil {
			logger.Error("apply migrations", "error", err)
			os.Exit(1)
		}
	}

	gw, err := store.New(ctx, store.Config{
		Profile:                 store.Profile(cfg.Profile),
		SQLitePath:              cfg.SQLite.Path,
		PostgresDSN:             postgresDSN(cfg),
		PostgresMaxOpenConns:    int(cfg.Database.MaxConnections),
		PostgresMaxIdleConns:    int(cfg.Database.MinConnections),
		PostgresConnMaxLifetime: cfg.Database.MaxConnLifetime,
		PostgresConnMaxIdleTime: cfg.Database.MaxConnIdleTime,
		CacheSize:               cfg.Store.EntityCacheSize,
	})
	if err != nil {
		logger.Error("open store gateway", "error", err)
		os.Exit(1)
	}
	defer gw.Close()

	bus, err := events.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("connect event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	publisher := events.NewPublisher(bus, events.PublisherConfig{
		MaxAttempts:     cfg.Bus.RetryMaxAttempts,
		InitialInterval: cfg.Bus.RetryInitialBackoff,
		BackoffFactor:   2.0,
		MaxIntervalCap:  cfg.Bus.RetryBackoffCapSec,
	}, logger)

	reg, err := registry.NewManager(registry.Config{Gateway: gw, Publisher: publisher, Logger: logger})
	if err != nil {
		logger.Error("build registry manager", "error", err)
		os.Exit(1)
	}

	deployMgr, err := deployment.NewManager(deployment.Config{
		Gateway:    gw,
		PreDeploy:  validation.NewPreDeploy(logger),
		PostDeploy: validation.NewPostDeploy(logger),
		Publisher:  publisher,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("build deployment manager", "error", err)
		os.Exit(1)
	}

	swapEngine, err := swap.NewEngine(swap.Config{
		Gateway:   gw,
		Validator: validation.NewSwap(logger),
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("build swap engine", "error", err)
		os.Exit(1)
	}

	stream := events.NewStream(logger)
	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()
	go func() {
		if err := stream.Run(streamCtx, bus, "library.*"); err != nil && streamCtx.Err() == nil {
			logger.Error("event stream run loop exited", "error", err)
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		EnableRateLimit:    true,
		EnableCompression:  true,
		EnableCORS:         true,
		EnableMetrics:      cfg.Metrics.Enabled,
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
		Logger:             logger,
		V1Prefix:           cfg.API.V1Prefix,
		PageSizeMax:        cfg.API.PageSizeMax,
		Entities:           handlers.NewEntityHandlers(reg, cfg.API.PageSizeMax, logger),
		Deployments:        handlers.NewDeploymentHandlers(deployMgr, gw, cfg.API.PageSizeMax, logger),
		Swaps:              handlers.NewSwapHandlers(swapEngine, gw, cfg.API.PageSizeMax, logger),
		Health:             handlers.NewHealthHandlers(gw, publisher),
		EventStream:        stream,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func applyMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var (
		db      *sql.DB
		dialect string
		err     error
	)
	switch cfg.Profile {
	case config.ProfileLite, "":
		db, err = sql.Open("sqlite", cfg.SQLite.Path)
		dialect = "sqlite3"
	case config.ProfileStandard:
		db, err = sql.Open("pgx", postgresDSN(cfg))
		dialect = "postgres"
	default:
		return fmt.Errorf("unknown deployment profile %q", cfg.Profile)
	}
	if err != nil {
		return fmt.Errorf("open migration db: %w", err)
	}
	defer db.Close()

	mgr, err := migrations.New(db, dialect, logger)
	if err != nil {
		return err
	}
	return mgr.Up(ctx)
}

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host,
		cfg.Database.Port, cfg.Database.Database, cfg.Database.SSLMode,
		int(cfg.Database.ConnectTimeout.Seconds()))
}
