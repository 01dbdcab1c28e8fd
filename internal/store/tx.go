package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/strategylib/control-plane/internal/core"
)

const (
	txOutcomeCommitted = "committed"
	txOutcomeRolledBack = "rolled_back"
)

// sqlTx implements Tx over a single *sql.Tx. Write helpers shared with
// the top-level Gateway (saveSwap/insertEvent) take an execer so the
// same code runs inside or outside a transaction.
type sqlTx struct {
	store *sqlStore
	tx    *sql.Tx
}

func (s *sqlStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			s.metrics.txTotal.WithLabelValues(txOutcomeRolledBack).Inc()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			s.metrics.txTotal.WithLabelValues(txOutcomeRolledBack).Inc()
			return
		}
		err = tx.Commit()
		if err != nil {
			s.metrics.txTotal.WithLabelValues(txOutcomeRolledBack).Inc()
		} else {
			s.metrics.txTotal.WithLabelValues(txOutcomeCommitted).Inc()
		}
	}()

	err = fn(&sqlTx{store: s, tx: tx})
	return err
}

func (t *sqlTx) LockEntity(ctx context.Context, id string) (*core.Entity, error) {
	d := t.store.dialect
	q := fmt.Sprintf(`SELECT %s FROM entities WHERE id = %s AND deleted_at IS NULL%s`, entityColumns, d.ph(1), d.forUpdate())
	e, err := scanEntity(t.tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, translateErr(err)
	}
	return e, nil
}

// LockEntities locks multiple entity rows in ascending ID order, the
// canonical lock order swap/deployment writers must follow to avoid
// deadlocking against each other (spec §5 "lock ordering").
func (t *sqlTx) LockEntities(ctx context.Context, ids ...string) (map[string]*core.Entity, error) {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)

	out := make(map[string]*core.Entity, len(sorted))
	for _, id := range sorted {
		e, err := t.LockEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, nil
}

func (t *sqlTx) SaveEntity(ctx context.Context, e *core.Entity) error {
	return t.store.saveEntityVia(ctx, t.tx, e)
}

func (s *sqlStore) saveEntityVia(ctx context.Context, execer execer, e *core.Entity) error {
	tags, _ := marshalJSON(e.Tags)
	config, _ := marshalJSON(e.Config)
	parameters, _ := marshalJSON(e.Parameters)
	requirements, _ := marshalJSON(e.Requirements)
	deploymentConfig, _ := marshalJSON(e.DeploymentConfig)

	q := fmt.Sprintf(`UPDATE entities SET name=%s, type=%s, category=%s, description=%s, version=%s,
		author=%s, tags=%s, config=%s, parameters=%s, requirements=%s, status=%s, health_status=%s,
		deployed_at=%s, deployed_by=%s, deployment_config=%s,
		resource_cpu=%s, resource_memory=%s, resource_gpu=%s,
		updated_at=%s, updated_by=%s, deleted_at=%s, deleted_by=%s
		WHERE id=%s`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5),
		s.dialect.ph(6), s.dialect.ph(7), s.dialect.ph(8), s.dialect.ph(9), s.dialect.ph(10),
		s.dialect.ph(11), s.dialect.ph(12), s.dialect.ph(13), s.dialect.ph(14), s.dialect.ph(15),
		s.dialect.ph(16), s.dialect.ph(17), s.dialect.ph(18), s.dialect.ph(19), s.dialect.ph(20),
		s.dialect.ph(21), s.dialect.ph(22), s.dialect.ph(23))

	res, err := execer.ExecContext(ctx, q,
		e.Name, e.Type, nullIfEmpty(e.Category), nullIfEmpty(e.Description), e.Version,
		nullIfEmpty(e.Author), tags, config, parameters, requirements, e.Status, e.HealthStatus,
		e.DeployedAt, nullIfEmpty(e.DeployedBy), deploymentConfig,
		e.Resources.CPU, e.Resources.Memory, e.Resources.GPU,
		e.UpdatedAt, nullIfEmpty(e.UpdatedBy), e.DeletedAt, nullIfEmpty(e.DeletedBy),
		e.ID,
	)
	if err != nil {
		return translateErr(err)
	}
	return checkRowsAffected(res)
}

func (t *sqlTx) LockDeploymentsForEntityEnv(ctx context.Context, entityID string, env core.Environment) ([]*core.Deployment, error) {
	d := t.store.dialect
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s AND environment = %s%s`,
		deploymentColumns, d.ph(1), d.ph(2), d.forUpdate())
	rows, err := t.tx.QueryContext(ctx, q, entityID, env)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []*core.Deployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (t *sqlTx) LockDeploymentsForEntity(ctx context.Context, entityID string) ([]*core.Deployment, error) {
	d := t.store.dialect
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s%s`, deploymentColumns, d.ph(1), d.forUpdate())
	rows, err := t.tx.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []*core.Deployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (t *sqlTx) DeploymentByEntityEnv(ctx context.Context, entityID string, env core.Environment) (*core.Deployment, error) {
	d := t.store.dialect
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s AND environment = %s AND status = 'active'
		ORDER BY deployed_at DESC LIMIT 1`, deploymentColumns, d.ph(1), d.ph(2))
	dep, err := scanDeployment(t.tx.QueryRowContext(ctx, q, entityID, env))
	if err != nil {
		return nil, translateErr(err)
	}
	return dep, nil
}

func (t *sqlTx) SaveDeployment(ctx context.Context, dep *core.Deployment) error {
	d := t.store.dialect
	configSnap, _ := marshalJSON(dep.ConfigSnapshot)
	paramsSnap, _ := marshalJSON(dep.ParametersSnapshot)
	validationResults, _ := marshalJSON(dep.ValidationResults)
	errorLogs, _ := marshalJSON(dep.ErrorLogs)
	healthChecks, _ := marshalJSON(dep.HealthChecks)

	var existing int
	existsQ := fmt.Sprintf(`SELECT 1 FROM deployments WHERE id = %s`, d.ph(1))
	err := t.tx.QueryRowContext(ctx, existsQ, dep.ID).Scan(&existing)
	if err == sql.ErrNoRows {
		q := fmt.Sprintf(`INSERT INTO deployments (%s) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
			deploymentColumns,
			d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7), d.ph(8), d.ph(9), d.ph(10),
			d.ph(11), d.ph(12), d.ph(13), d.ph(14), d.ph(15), d.ph(16), d.ph(17), d.ph(18), d.ph(19), d.ph(20), d.ph(21))
		_, err := t.tx.ExecContext(ctx, q,
			dep.ID, dep.EntityID, dep.Version, dep.Environment, configSnap, paramsSnap,
			dep.Status, dep.DeployedAt, nullIfEmpty(dep.DeployedBy), nullIfEmpty(dep.DeploymentMethod),
			dep.RolledBackAt, nullIfEmpty(dep.RolledBackBy), nullIfEmpty(dep.RollbackReason), dep.PreviousDeploymentID,
			validationResults, errorLogs, dep.DurationSeconds,
			healthChecks, dep.LastHealthCheck, dep.CreatedAt, dep.UpdatedAt,
		)
		return translateErr(err)
	} else if err != nil {
		return translateErr(err)
	}

	q := fmt.Sprintf(`UPDATE deployments SET status=%s, deployed_at=%s, deployed_by=%s,
		rolled_back_at=%s, rolled_back_by=%s, rollback_reason=%s,
		validation_results=%s, error_logs=%s, duration_seconds=%s,
		health_checks=%s, last_health_check=%s, updated_at=%s
		WHERE id=%s`,
		d.ph(1), d.ph(2), d.ph(3), d.ph(4), d.ph(5), d.ph(6), d.ph(7), d.ph(8), d.ph(9), d.ph(10), d.ph(11), d.ph(12), d.ph(13))
	_, err = t.tx.ExecContext(ctx, q,
		dep.Status, dep.DeployedAt, nullIfEmpty(dep.DeployedBy),
		dep.RolledBackAt, nullIfEmpty(dep.RolledBackBy), nullIfEmpty(dep.RollbackReason),
		validationResults, errorLogs, dep.DurationSeconds,
		healthChecks, dep.LastHealthCheck, dep.UpdatedAt,
		dep.ID,
	)
	return translateErr(err)
}

func (t *sqlTx) SaveSwap(ctx context.Context, sw *core.Swap) error {
	return t.store.saveSwap(ctx, t.tx, sw)
}

func (t *sqlTx) InsertEvent(ctx context.Context, e *core.Event) error {
	return t.store.insertEvent(ctx, t.tx, e)
}
