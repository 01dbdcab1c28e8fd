package registry_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strategylib/control-plane/internal/core"
	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/migrations"
	"github.com/strategylib/control-plane/internal/registry"
	"github.com/strategylib/control-plane/internal/store"
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

func newTestManager(t *testing.T) (*registry.Manager, store.Gateway) {
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
	m, err := registry.NewManager(registry.Config{Gateway: gw, Publisher: pub})
	require.NoError(t, err)
	return m, gw
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, registry.CreateRequest{Name: "alpha", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)

	_, err = m.Create(ctx, registry.CreateRequest{Name: "alpha", Type: core.EntityTypeStrategy, Version: "1.0.1"})
	require.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestUpdatePartialPayloadOnlyTouchesSuppliedFields(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	e, err := m.Create(ctx, registry.CreateRequest{Name: "beta", Type: core.EntityTypeStrategy, Version: "1.0.0", Author: "sam"})
	require.NoError(t, err)

	newVersion := "2.0.0"
	updated, err := m.Update(ctx, e.ID, registry.UpdateRequest{Version: &newVersion, UpdatedBy: "u1"})
	require.NoError(t, err)
	require.Equal(t, "2.0.0", updated.Version)
	require.Equal(t, "sam", updated.Author)
}

func TestUpdateRejectsInvalidStatusTransition(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	e, err := m.Create(ctx, registry.CreateRequest{Name: "gamma", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)

	bad := core.EntityStatusActive
	_, err = m.Update(ctx, e.ID, registry.UpdateRequest{Status: &bad})
	require.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestDeleteThenGetReturnsNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	e, err := m.Create(ctx, registry.CreateRequest{Name: "delta", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, e.ID, "u1"))
	_, err = m.Get(ctx, e.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	err = m.Delete(ctx, e.ID, "u1")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestAddDependencyRejectsSelfDependency(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	e, err := m.Create(ctx, registry.CreateRequest{Name: "epsilon", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)

	_, err = m.AddDependency(ctx, registry.AddDependencyRequest{
		EntityID:          e.ID,
		DependsOnEntityID: e.ID,
		DependencyType:    core.DependencyTypeRequired,
	})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestAddDependencyRejectsCycle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.Create(ctx, registry.CreateRequest{Name: "a", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)
	b, err := m.Create(ctx, registry.CreateRequest{Name: "b", Type: core.EntityTypeStrategy, Version: "1.0.0"})
	require.NoError(t, err)

	_, err = m.AddDependency(ctx, registry.AddDependencyRequest{
		EntityID:          a.ID,
		DependsOnEntityID: b.ID,
		DependencyType:    core.DependencyTypeRequired,
	})
	require.NoError(t, err)

	_, err = m.AddDependency(ctx, registry.AddDependencyRequest{
		EntityID:          b.ID,
		DependsOnEntityID: a.ID,
		DependencyType:    core.DependencyTypeRequired,
	})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
}
