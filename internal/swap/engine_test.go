package swap_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/swap"
	"github.com/strategylib/control-plane/internal/validation"
)

type dbAccessor interface {
	DB() *sql.DB
}

type noopBus struct{}

func (noopBus) Publish(ctx context.Context, subject string, payload []byte) error { return nil }
func (noopBus) Subscribe(ctx context.Context, pattern string) (<-chan events.Message, error) {
	ch := make(chan events.Message)
	close(ch)
	return ch, nil
}
func (noopBus) Close() error { return nil }

func newTestEngine(t *testing.T) (*swap.Engine, store.Gateway) {
	t.Helper()
	ctx := context.Background()

	gw, err := store.NewSQLiteGateway(ctx, store.SQLiteConfig{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	db := gw.(dbAccessor).DB()
	mgr, err := migrations.New(db, "sqlite3", nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	pub := events.NewPublisher(noopBus{}, events.DefaultPublisherConfig(), nil)
	e, err := swap.NewEngine(swap.Config{
		Gateway:   gw,
		Validator: validation.NewSwap(nil),
		Publisher: pub,
	})
	require.NoError(t, err)
	return e, gw
}

func seedEntity(t *testing.T, gw store.Gateway, id, name string, typ core.EntityType) *core.Entity {
	t.Helper()
	now := time.Now().UTC()
	e := &core.Entity{
		ID:           id,
		Name:         name,
		Type:         typ,
		Version:      "1.0.0",
		Status:       core.EntityStatusActive,
		HealthStatus: core.HealthStatusHealthy,
		Config:       core.JSONObject{"risk": "medium"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, gw.CreateEntity(context.Background(), e))
	return e
}

func seedActiveDeployment(t *testing.T, gw store.Gateway, entityID string, env core.Environment) *core.Deployment {
	t.Helper()
	now := time.Now().UTC()
	d := &core.Deployment{
		ID:             "dep-" + entityID + "-" + string(env),
		EntityID:       entityID,
		Version:        "1.0.0",
		Environment:    env,
		ConfigSnapshot: core.JSONObject{"risk": "medium"},
		Status:         core.DeploymentStatusActive,
		DeployedAt:     &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, gw.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.SaveDeployment(context.Background(), d)
	}))
	return d
}

func TestExecuteSwapHappyPath(t *testing.T) {
	e, gw := newTestEngine(t)
	ctx := context.Background()

	seedEntity(t, gw, "ent-alpha", "alpha", core.EntityTypeStrategy)
	seedEntity(t, gw, "ent-beta", "beta", core.EntityTypeStrategy)
	seedActiveDeployment(t, gw, "ent-alpha", core.EnvironmentProduction)

	sw, err := e.Execute(ctx, swap.Request{
		FromEntityID: "ent-alpha",
		ToEntityID:   "ent-beta",
		Reason:       "upgrade",
		InitiatedBy:  "u1",
	})
	require.NoError(t, err)
	require.Equal(t, core.SwapStatusCompleted, sw.Status)
	require.True(t, *sw.Success)
	require.Greater(t, *sw.DowntimeMillis, int64(-1))

	alpha, err := gw.GetEntity(ctx, "ent-alpha")
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusInactive, alpha.Status)

	beta, err := gw.GetEntity(ctx, "ent-beta")
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusActive, beta.Status)

	betaDeps, err := gw.ListDeploymentsByEntity(ctx, "ent-beta")
	require.NoError(t, err)
	found := false
	for _, d := range betaDeps {
		if d.Environment == core.EnvironmentProduction && d.Status == core.DeploymentStatusActive {
			found = true
			require.Equal(t, "hotswap", d.DeploymentMethod)
		}
	}
	require.True(t, found, "expected a new active production deployment for beta")
}

func TestExecuteSwapValidateOnlyPersistsNothing(t *testing.T) {
	e, gw := newTestEngine(t)
	ctx := context.Background()

	seedEntity(t, gw, "ent-alpha", "alpha", core.EntityTypeStrategy)
	seedEntity(t, gw, "ent-beta", "beta", core.EntityTypeStrategy)
	seedActiveDeployment(t, gw, "ent-alpha", core.EnvironmentProduction)

	sw, err := e.Execute(ctx, swap.Request{
		FromEntityID: "ent-alpha",
		ToEntityID:   "ent-beta",
		Reason:       "dry run",
		InitiatedBy:  "u1",
		ValidateOnly: true,
	})
	require.NoError(t, err)
	require.Equal(t, core.SwapStatusValidating, sw.Status)
	require.Empty(t, sw.ID)
	require.True(t, sw.ValidationResults.Passed)

	swaps, err := gw.ListSwapsByEntity(ctx, "ent-alpha")
	require.NoError(t, err)
	require.Empty(t, swaps)
}

func TestExecuteSwapRejectsTypeMismatch(t *testing.T) {
	e, gw := newTestEngine(t)
	ctx := context.Background()

	seedEntity(t, gw, "ent-strategy", "strategy-entity", core.EntityTypeStrategy)
	seedEntity(t, gw, "ent-pipeline", "pipeline-entity", core.EntityTypePipeline)
	seedActiveDeployment(t, gw, "ent-strategy", core.EnvironmentProduction)

	_, err := e.Execute(ctx, swap.Request{
		FromEntityID: "ent-strategy",
		ToEntityID:   "ent-pipeline",
		Reason:       "bad swap",
		InitiatedBy:  "u1",
	})
	require.Error(t, err)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)

	swaps, err := gw.ListSwapsByEntity(ctx, "ent-strategy")
	require.NoError(t, err)
	require.Empty(t, swaps)
}

func TestExecuteSwapRejectsSameEntity(t *testing.T) {
	e, gw := newTestEngine(t)
	ctx := context.Background()
	seedEntity(t, gw, "ent-alpha", "alpha", core.EntityTypeStrategy)

	_, err := e.Execute(ctx, swap.Request{
		FromEntityID: "ent-alpha",
		ToEntityID:   "ent-alpha",
		Reason:       "no-op",
		InitiatedBy:  "u1",
	})
	require.Error(t, err)
}

func TestRollbackSwapReactivatesFromEntity(t *testing.T) {
	e, gw := newTestEngine(t)
	ctx := context.Background()

	seedEntity(t, gw, "ent-alpha", "alpha", core.EntityTypeStrategy)
	seedEntity(t, gw, "ent-beta", "beta", core.EntityTypeStrategy)
	seedActiveDeployment(t, gw, "ent-alpha", core.EnvironmentProduction)

	sw, err := e.Execute(ctx, swap.Request{
		FromEntityID: "ent-alpha",
		ToEntityID:   "ent-beta",
		Reason:       "upgrade",
		InitiatedBy:  "u1",
	})
	require.NoError(t, err)

	rolledBack, err := e.Rollback(ctx, swap.RollbackRequest{
		SwapID:       sw.ID,
		Reason:       "regression",
		RolledBackBy: "u1",
	})
	require.NoError(t, err)
	require.Equal(t, core.SwapStatusRolledBack, rolledBack.Status)

	alpha, err := gw.GetEntity(ctx, "ent-alpha")
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusActive, alpha.Status)

	beta, err := gw.GetEntity(ctx, "ent-beta")
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusInactive, beta.Status)

	alphaDep, err := gw.GetDeployment(ctx, "dep-ent-alpha-production")
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusActive, alphaDep.Status)
}
