//go:build integration

package integration

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/api"
	"github.com/strategylib/control-plane/internal/api/handlers"
	"github.com/strategylib/control-plane/internal/deployment"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/registry"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/swap"
	"github.com/strategylib/control-plane/internal/validation"
)

type dbAccessor interface {
	DB() *sql.DB
}

// testServer wires the full HTTP surface against an in-memory SQLite
// gateway and a miniredis-backed event bus, so Scenario tests in
// spec §8 can drive real handlers without an external dependency.
type testServer struct {
	*httptest.Server
	Gateway store.Gateway
	Redis   *miniredis.Miniredis
	Bus     *events.RedisBus
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))

	gw, err := store.NewSQLiteGateway(ctx, store.SQLiteConfig{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	db := gw.(dbAccessor).DB()
	mgr, err := migrations.New(db, "sqlite3", logger)
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := events.NewRedisBusFromClient(client)

	// Short retry bounds keep Scenario F's bus-down case from stalling
	// the test suite; spec §6 only fixes the attempt count, not timing.
	publisher := events.NewPublisher(bus, events.PublisherConfig{
		MaxAttempts:     3,
		InitialInterval: 5 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxIntervalCap:  20 * time.Millisecond,
	}, logger)

	reg, err := registry.NewManager(registry.Config{Gateway: gw, Publisher: publisher, Logger: logger})
	require.NoError(t, err)

	deployMgr, err := deployment.NewManager(deployment.Config{
		Gateway:    gw,
		PreDeploy:  validation.NewPreDeploy(logger),
		PostDeploy: validation.NewPostDeploy(logger),
		Publisher:  publisher,
		Logger:     logger,
	})
	require.NoError(t, err)

	swapEngine, err := swap.NewEngine(swap.Config{
		Gateway:   gw,
		Validator: validation.NewSwap(logger),
		Publisher: publisher,
		Logger:    logger,
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		EnableRateLimit:    false,
		EnableCompression:  false,
		EnableCORS:         false,
		EnableMetrics:      false,
		RateLimitPerMinute: 1000,
		RateLimitBurst:     1000,
		Logger:             logger,
		V1Prefix:           "/api/v1",
		PageSizeMax:        100,
		Entities:           handlers.NewEntityHandlers(reg, 100, logger),
		Deployments:        handlers.NewDeploymentHandlers(deployMgr, gw, 100, logger),
		Swaps:              handlers.NewSwapHandlers(swapEngine, gw, 100, logger),
		Health:             handlers.NewHealthHandlers(gw, publisher),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, Gateway: gw, Redis: mr, Bus: bus}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
