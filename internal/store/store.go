// Package store implements the Store Gateway (spec §4.6): transactional
// CRUD over entities, deployments, swaps, events and dependencies, with
// row-level locking for mutation paths and a soft-delete predicate
// centralized here rather than scattered across callers (spec §9).
package store

import (
	"context"
	"time"

	"github.com/strategylib/control-plane/internal/core"
)

// Gateway is the full read/write surface the rest of the service uses to
// reach the relational store. Two concrete implementations exist
// (postgres and sqlite, selected by deployment profile — see factory.go)
// sharing one SQL-generation layer (sql_store.go) since both are reached
// through database/sql (postgres via pgx's stdlib adapter).
type Gateway interface {
	// Entities
	CreateEntity(ctx context.Context, e *core.Entity) error
	GetEntity(ctx context.Context, id string) (*core.Entity, error)
	GetEntityByName(ctx context.Context, name string) (*core.Entity, error)
	SaveEntity(ctx context.Context, e *core.Entity) error
	SoftDeleteEntity(ctx context.Context, id, deletedBy string, at time.Time) error
	ListEntities(ctx context.Context, filters core.EntityFilters, pg core.Pagination) (*core.Page[*core.Entity], error)

	// Dependencies
	CreateDependency(ctx context.Context, d *core.Dependency) error
	ListDependencies(ctx context.Context, entityID string) ([]*core.DependencyView, error)
	AllDependencyEdges(ctx context.Context) ([]core.Dependency, error)

	// Deployments
	GetDeployment(ctx context.Context, id string) (*core.Deployment, error)
	ListDeployments(ctx context.Context, filters core.DeploymentFilters, pg core.Pagination) (*core.Page[*core.Deployment], error)
	ListDeploymentsByEntity(ctx context.Context, entityID string) ([]*core.Deployment, error)
	ActiveDeployment(ctx context.Context, entityID string, env core.Environment) (*core.Deployment, error)
	PreviousActiveDeployment(ctx context.Context, entityID string, env core.Environment, before time.Time) (*core.Deployment, error)

	// Swaps
	GetSwap(ctx context.Context, id string) (*core.Swap, error)
	ListSwaps(ctx context.Context, filters core.SwapFilters, pg core.Pagination) (*core.Page[*core.Swap], error)
	ListSwapsByEntity(ctx context.Context, entityID string) ([]*core.Swap, error)
	SaveSwap(ctx context.Context, s *core.Swap) error

	// Events (audit log, append-only)
	InsertEvent(ctx context.Context, e *core.Event) error

	// Performance metrics (spec §6 "Persisted state layout")
	InsertPerformanceMetric(ctx context.Context, m *core.PerformanceMetric) error
	ListPerformanceMetrics(ctx context.Context, entityID string) ([]*core.PerformanceMetric, error)

	// Health
	Ping(ctx context.Context) error

	// WithTx runs fn inside a single transaction. Any error returned by fn
	// (or a panic) rolls the transaction back; a nil error commits. This
	// is the only way callers may mutate entities/deployments/swaps
	// together, so that spec §5's atomicity contract holds.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the mutation surface available inside a Gateway.WithTx callback.
// LockEntity/LockEntities take row locks (postgres: SELECT ... FOR
// UPDATE; sqlite: plain SELECT, since sqlite already serializes writers)
// that are held for the lifetime of the transaction.
type Tx interface {
	LockEntity(ctx context.Context, id string) (*core.Entity, error)
	LockEntities(ctx context.Context, ids ...string) (map[string]*core.Entity, error)
	SaveEntity(ctx context.Context, e *core.Entity) error

	LockDeploymentsForEntityEnv(ctx context.Context, entityID string, env core.Environment) ([]*core.Deployment, error)
	LockDeploymentsForEntity(ctx context.Context, entityID string) ([]*core.Deployment, error)
	DeploymentByEntityEnv(ctx context.Context, entityID string, env core.Environment) (*core.Deployment, error)
	SaveDeployment(ctx context.Context, d *core.Deployment) error

	SaveSwap(ctx context.Context, s *core.Swap) error

	InsertEvent(ctx context.Context, e *core.Event) error
}
