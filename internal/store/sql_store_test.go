package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/store"
)

// dbAccessor is implemented by the sqlite/postgres Gateway to expose the
// raw handle migrations need; it is intentionally not part of the
// Gateway interface itself.
type dbAccessor interface {
	DB() *sql.DB
}

func newTestGateway(t *testing.T) store.Gateway {
	t.Helper()
	ctx := context.Background()

	gw, err := store.NewSQLiteGateway(ctx, store.SQLiteConfig{Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	db := gw.(dbAccessor).DB()
	mgr, err := migrations.New(db, "sqlite3", nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Up(ctx))

	return gw
}

func newEntity(name string) *core.Entity {
	now := time.Now().UTC()
	return &core.Entity{
		ID:           "ent-" + name,
		Name:         name,
		Type:         core.EntityTypeStrategy,
		Version:      "1.0.0",
		Status:       core.EntityStatusRegistered,
		HealthStatus: core.HealthStatusUnknown,
		Tags:         []string{"alpha", "beta"},
		Config:       core.JSONObject{"lookback": float64(20)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateAndGetEntity(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	e := newEntity("momentum-v1")
	require.NoError(t, gw.CreateEntity(ctx, e))

	got, err := gw.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, e.Name, got.Name)
	require.ElementsMatch(t, e.Tags, got.Tags)
	require.Equal(t, float64(20), got.Config["lookback"])
}

func TestCreateEntityDuplicateName(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	e1 := newEntity("dup")
	require.NoError(t, gw.CreateEntity(ctx, e1))

	e2 := newEntity("dup")
	e2.ID = "ent-dup-2"
	err := gw.CreateEntity(ctx, e2)
	require.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestGetEntityNotFound(t *testing.T) {
	gw := newTestGateway(t)
	_, err := gw.GetEntity(context.Background(), "missing")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSoftDeleteEntityExcludedFromGet(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	e := newEntity("retired")
	require.NoError(t, gw.CreateEntity(ctx, e))
	require.NoError(t, gw.SoftDeleteEntity(ctx, e.ID, "operator", time.Now().UTC()))

	_, err := gw.GetEntity(ctx, e.ID)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestListEntitiesFiltersByType(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	strat := newEntity("strat-1")
	require.NoError(t, gw.CreateEntity(ctx, strat))

	model := newEntity("model-1")
	model.Type = core.EntityTypeModel
	require.NoError(t, gw.CreateEntity(ctx, model))

	wantType := core.EntityTypeModel
	page, err := gw.ListEntities(ctx, core.EntityFilters{Type: &wantType}, core.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	require.Equal(t, "model-1", page.Items[0].Name)
}

func TestWithTxLockEntitiesLocksEveryRequestedID(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	a := newEntity("zeta")
	b := newEntity("alpha-entity")
	require.NoError(t, gw.CreateEntity(ctx, a))
	require.NoError(t, gw.CreateEntity(ctx, b))

	err := gw.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockEntities(ctx, a.ID, b.ID)
		require.NoError(t, err)
		require.Len(t, locked, 2)
		require.Contains(t, locked, a.ID)
		require.Contains(t, locked, b.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	e := newEntity("rollback-me")
	require.NoError(t, gw.CreateEntity(ctx, e))

	wantErr := core.ErrInternal
	err := gw.WithTx(ctx, func(tx store.Tx) error {
		locked, err := tx.LockEntity(ctx, e.ID)
		require.NoError(t, err)
		locked.Status = core.EntityStatusFailed
		require.NoError(t, tx.SaveEntity(ctx, locked))
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got, err := gw.GetEntity(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, core.EntityStatusRegistered, got.Status) // unchanged: rolled back
}

func TestDependencyRoundTrip(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	parent := newEntity("parent")
	child := newEntity("child")
	require.NoError(t, gw.CreateEntity(ctx, parent))
	require.NoError(t, gw.CreateEntity(ctx, child))

	dep := &core.Dependency{
		ID:                "dep-1",
		EntityID:          parent.ID,
		DependsOnEntityID: child.ID,
		DependencyType:    core.DependencyTypeRequired,
		Status:            core.DependencyStatusActive,
	}
	require.NoError(t, gw.CreateDependency(ctx, dep))

	views, err := gw.ListDependencies(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, child.ID, views[0].Entity.ID)
	require.Equal(t, core.DependencyTypeRequired, views[0].DependencyType)

	edges, err := gw.AllDependencyEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestSaveSwapInsertsThenUpdates(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	from := newEntity("from-entity")
	to := newEntity("to-entity")
	require.NoError(t, gw.CreateEntity(ctx, from))
	require.NoError(t, gw.CreateEntity(ctx, to))

	sw := &core.Swap{
		ID:           "swap-1",
		FromEntityID: from.ID,
		ToEntityID:   to.ID,
		SwapType:     core.SwapTypeManual,
		Status:       core.SwapStatusInitiated,
		InitiatedAt:  time.Now().UTC(),
	}
	require.NoError(t, gw.SaveSwap(ctx, sw))

	sw.Status = core.SwapStatusCompleted
	success := true
	sw.Success = &success
	require.NoError(t, gw.SaveSwap(ctx, sw))

	got, err := gw.GetSwap(ctx, sw.ID)
	require.NoError(t, err)
	require.Equal(t, core.SwapStatusCompleted, got.Status)
	require.True(t, *got.Success)
}

func TestInsertEventAndPerformanceMetric(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	e := newEntity("metered")
	require.NoError(t, gw.CreateEntity(ctx, e))

	ev := &core.Event{
		ID:            "evt-1",
		EventType:     core.SubjectEntityRegistered,
		EventCategory: "entity",
		Severity:      core.EventSeverityInfo,
		EntityID:      &e.ID,
		Message:       "entity registered",
		Source:        core.EventSource,
		OccurredAt:    time.Now().UTC(),
	}
	require.NoError(t, gw.InsertEvent(ctx, ev))

	metric := &core.PerformanceMetric{
		ID:         "metric-1",
		EntityID:   &e.ID,
		MetricType: core.MetricDeploymentDuration,
		Value:      1.25,
		RecordedAt: time.Now().UTC(),
	}
	require.NoError(t, gw.InsertPerformanceMetric(ctx, metric))

	metrics, err := gw.ListPerformanceMetrics(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	require.Equal(t, 1.25, metrics[0].Value)
}
