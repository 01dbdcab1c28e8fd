// Command seed populates a control plane database with a handful of
// example entities, for local smoke testing against a fresh schema.
//
// Usage:
//
//	go run ./cmd/seed -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/strategylib/control-plane/internal/config"
	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/registry"
	"github.com/strategylib/control-plane/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	gw, err := store.New(ctx, store.Config{
		Profile:    store.Profile(cfg.Profile),
		SQLitePath: cfg.SQLite.Path,
		PostgresDSN: fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host,
			cfg.Database.Port, cfg.Database.Database, cfg.Database.SSLMode),
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
	publisher := events.NewPublisher(bus, events.DefaultPublisherConfig(), logger)

	reg, err := registry.NewManager(registry.Config{Gateway: gw, Publisher: publisher, Logger: logger})
	if err != nil {
		logger.Error("build registry manager", "error", err)
		os.Exit(1)
	}

	for _, req := range seedEntities() {
		e, err := reg.Create(ctx, req)
		if err != nil {
			logger.Warn("skip seed entity", "name", req.Name, "error", err)
			continue
		}
		logger.Info("seeded entity", "name", e.Name, "id", e.ID, "version", e.Version)
	}
}

func seedEntities() []registry.CreateRequest {
	return []registry.CreateRequest{
		{
			Name:        "mean-reversion-v2",
			Type:        core.EntityTypeStrategy,
			Category:    "equities",
			Description: "Mean-reversion strategy over rolling z-scores",
			Version:     "2.1.0",
			Author:      "quant-research",
			Tags:        []string{"equities", "mean-reversion"},
			Config:      core.JSONObject{"lookback_days": 20},
			CreatedBy:   "seed",
		},
		{
			Name:        "momentum-breakout",
			Type:        core.EntityTypeStrategy,
			Category:    "futures",
			Description: "Breakout detector over volatility-adjusted momentum",
			Version:     "1.0.0",
			Author:      "quant-research",
			Tags:        []string{"futures", "momentum"},
			CreatedBy:   "seed",
		},
		{
			Name:        "risk-limits-model",
			Type:        core.EntityTypeModel,
			Category:    "risk",
			Description: "Position sizing and exposure limit model",
			Version:     "1.3.0",
			Author:      "risk-eng",
			Tags:        []string{"risk"},
			CreatedBy:   "seed",
		},
	}
}
