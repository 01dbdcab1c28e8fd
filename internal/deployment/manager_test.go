package deployment_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/deployment"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/store"
	"github.com/strategylib/control-plane/internal/validation"
)

type dbAccessor interface {
	DB() *sql.DB
}

// noopBus discards every publish, so tests exercise the Publisher's
// retry/degrade plumbing without needing a live Redis instance.
type noopBus struct{}

func (noopBus) Publish(ctx context.Context, subject string, payload []byte) error { return nil }
func (noopBus) Subscribe(ctx context.Context, pattern string) (<-chan events.Message, error) {
	ch := make(chan events.Message)
	close(ch)
	return ch, nil
}
func (noopBus) Close() error { return nil }

func newTestManager(t *testing.T) (*deployment.Manager, store.Gateway) {
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
	m, err := deployment.NewManager(deployment.Config{
		Gateway:    gw,
		PreDeploy:  validation.NewPreDeploy(nil),
		PostDeploy: validation.NewPostDeploy(nil),
		Publisher:  pub,
	})
	require.NoError(t, err)
	return m, gw
}

func seedEntity(t *testing.T, gw store.Gateway, id, name string) *core.Entity {
	t.Helper()
	now := time.Now().UTC()
	e := &core.Entity{
		ID:           id,
		Name:         name,
		Type:         core.EntityTypeStrategy,
		Version:      "1.0.0",
		Status:       core.EntityStatusRegistered,
		HealthStatus: core.HealthStatusHealthy,
		Config:       core.JSONObject{"risk": "medium"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, gw.CreateEntity(context.Background(), e))
	return e
}

func TestCreateDeploymentActivatesAndDeactivatesPrevious(t *testing.T) {
	m, gw := newTestManager(t)
	ctx := context.Background()
	seedEntity(t, gw, "ent-alpha", "alpha")

	d1, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:    "ent-alpha",
		Environment: core.EnvironmentStaging,
		DeployedBy:  "u1",
	})
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusActive, d1.Status)

	d2, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:       "ent-alpha",
		Environment:    core.EnvironmentStaging,
		DeployedBy:     "u1",
		ConfigOverride: core.JSONObject{"risk": "low"},
	})
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusActive, d2.Status)

	reloaded, err := gw.GetDeployment(ctx, d1.ID)
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusInactive, reloaded.Status)

	entity, err := gw.GetEntity(ctx, "ent-alpha")
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusDeployed, entity.Status)
	require.Equal(t, "low", entity.DeploymentConfig["risk"])
}

func TestCreateDeploymentFailsValidationOnUnhealthyEntity(t *testing.T) {
	m, gw := newTestManager(t)
	ctx := context.Background()
	e := seedEntity(t, gw, "ent-beta", "beta")
	e.HealthStatus = core.HealthStatusUnhealthy
	require.NoError(t, gw.SaveEntity(ctx, e))

	_, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:    "ent-beta",
		Environment: core.EnvironmentStaging,
		DeployedBy:  "u1",
	})
	require.Error(t, err)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRollbackDeploymentRestoresPreviousActive(t *testing.T) {
	m, gw := newTestManager(t)
	ctx := context.Background()
	seedEntity(t, gw, "ent-gamma", "gamma")

	d1, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:    "ent-gamma",
		Environment: core.EnvironmentStaging,
		DeployedBy:  "u1",
	})
	require.NoError(t, err)

	d2, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:       "ent-gamma",
		Environment:    core.EnvironmentStaging,
		DeployedBy:     "u1",
		ConfigOverride: core.JSONObject{"risk": "high"},
	})
	require.NoError(t, err)

	rolledBack, err := m.RollbackDeployment(ctx, deployment.RollbackRequest{
		DeploymentID: d2.ID,
		Reason:       "bug",
		RolledBackBy: "u1",
	})
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusRolledBack, rolledBack.Status)
	require.Equal(t, d1.ID, *rolledBack.PreviousDeploymentID)

	reloadedD1, err := gw.GetDeployment(ctx, d1.ID)
	require.NoError(t, err)
	require.Equal(t, core.DeploymentStatusActive, reloadedD1.Status)

	entity, err := gw.GetEntity(ctx, "ent-gamma")
	require.NoError(t, err)
	require.Equal(t, "medium", entity.DeploymentConfig["risk"])
}

func TestRollbackDeploymentFailsWithoutPriorDeployment(t *testing.T) {
	m, gw := newTestManager(t)
	ctx := context.Background()
	seedEntity(t, gw, "ent-delta", "delta")

	d1, err := m.CreateDeployment(ctx, deployment.CreateRequest{
		EntityID:    "ent-delta",
		Environment: core.EnvironmentStaging,
		DeployedBy:  "u1",
	})
	require.NoError(t, err)

	_, err = m.RollbackDeployment(ctx, deployment.RollbackRequest{
		DeploymentID: d1.ID,
		Reason:       "bug",
		RolledBackBy: "u1",
	})
	require.ErrorIs(t, err, core.ErrNoRollbackTarget)
}
