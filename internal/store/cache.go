package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/strategylib/control-plane/internal/core"
)

// cachingGateway is a read-through decorator over Gateway caching
// GetEntity by ID. Every mutation that can change an entity's row
// invalidates its cache entry rather than updating it in place, so a
// failed write never leaves a stale hit behind.
type cachingGateway struct {
	Gateway
	entities *lru.Cache[string, *core.Entity]
}

// NewCachingGateway wraps gw with an LRU entity cache of the given size
// (spec §9 "read-through cache in front of the Store Gateway").
func NewCachingGateway(gw Gateway, size int) Gateway {
	c, err := lru.New[string, *core.Entity](size)
	if err != nil {
		// size <= 0 is the only failure mode; fall back to uncached.
		return gw
	}
	return &cachingGateway{Gateway: gw, entities: c}
}

func (c *cachingGateway) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	if e, ok := c.entities.Get(id); ok {
		cp := *e
		return &cp, nil
	}
	e, err := c.Gateway.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *e
	c.entities.Add(id, &cp)
	return e, nil
}

func (c *cachingGateway) CreateEntity(ctx context.Context, e *core.Entity) error {
	err := c.Gateway.CreateEntity(ctx, e)
	if err == nil {
		c.entities.Remove(e.ID)
	}
	return err
}

func (c *cachingGateway) SaveEntity(ctx context.Context, e *core.Entity) error {
	err := c.Gateway.SaveEntity(ctx, e)
	c.entities.Remove(e.ID)
	return err
}

func (c *cachingGateway) SoftDeleteEntity(ctx context.Context, id, deletedBy string, at time.Time) error {
	err := c.Gateway.SoftDeleteEntity(ctx, id, deletedBy, at)
	c.entities.Remove(id)
	return err
}

// WithTx wraps the inner Tx to track which entity IDs were touched
// (locked or saved) during the transaction and evicts them from the
// cache once it commits, so a hot-swap or deployment never leaves a
// stale entity cached (spec §5 atomicity contract extended to reads).
func (c *cachingGateway) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	touched := make(map[string]struct{})
	err := c.Gateway.WithTx(ctx, func(tx Tx) error {
		return fn(&invalidatingTx{Tx: tx, touched: touched})
	})
	for id := range touched {
		c.entities.Remove(id)
	}
	return err
}

type invalidatingTx struct {
	Tx
	touched map[string]struct{}
}

func (t *invalidatingTx) LockEntity(ctx context.Context, id string) (*core.Entity, error) {
	t.touched[id] = struct{}{}
	return t.Tx.LockEntity(ctx, id)
}

func (t *invalidatingTx) LockEntities(ctx context.Context, ids ...string) (map[string]*core.Entity, error) {
	for _, id := range ids {
		t.touched[id] = struct{}{}
	}
	return t.Tx.LockEntities(ctx, ids...)
}

func (t *invalidatingTx) SaveEntity(ctx context.Context, e *core.Entity) error {
	t.touched[e.ID] = struct{}{}
	return t.Tx.SaveEntity(ctx, e)
}
