package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/strategylib/control-plane/internal/core"
)

// observe times a store operation and records it (plus an error count on
// failure) against the shared Prometheus vectors.
func (s *sqlStore) observe(operation string, start time.Time, err error) {
	s.metrics.queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil && err != core.ErrNotFound {
		s.metrics.queryErrors.WithLabelValues(operation).Inc()
	}
}

// sqlStore is the shared Gateway implementation for both deployment
// profiles. Postgres is reached through pgx's database/sql adapter
// (stdlib.OpenDBFromPool) exactly the way the teacher's
// infrastructure/postgres_adapter.go wraps its pgxpool, and sqlite
// through database/sql directly via modernc.org/sqlite — so one set of
// queries, parameterized only by placeholder syntax and lock clause,
// serves both.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	metrics *storeMetrics
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *sqlStore) Close() error { return s.db.Close() }

// DB exposes the underlying database handle for migration tooling and
// tests; it is not part of the Gateway interface.
func (s *sqlStore) DB() *sql.DB { return s.db }

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// translateErr maps driver-specific "not found" / "unique violation"
// signals onto the sentinel errors the rest of the service switches on
// (spec §7).
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return core.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed") {
		return core.ErrAlreadyExists
	}
	return err
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSONObject(raw []byte, out *core.JSONObject) error {
	if len(raw) == 0 || string(raw) == "null" {
		*out = nil
		return nil
	}
	return json.Unmarshal(raw, out)
}

func unmarshalStrings(raw []byte) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- entities ----

const entityColumns = `id, name, type, category, description, version, author,
	tags, config, parameters, requirements, status, health_status,
	deployed_at, deployed_by, deployment_config,
	resource_cpu, resource_memory, resource_gpu,
	created_at, updated_at, created_by, updated_by, deleted_at, deleted_by`

func scanEntity(r rowScanner) (*core.Entity, error) {
	var e core.Entity
	var tags, config, parameters, requirements, deploymentConfig []byte
	var cpu, mem, gpu sql.NullString
	var deployedBy, author, category, description, createdBy, updatedBy, deletedBy sql.NullString
	var deployedAt, deletedAt sql.NullTime

	err := r.Scan(
		&e.ID, &e.Name, &e.Type, &category, &description, &e.Version, &author,
		&tags, &config, &parameters, &requirements, &e.Status, &e.HealthStatus,
		&deployedAt, &deployedBy, &deploymentConfig,
		&cpu, &mem, &gpu,
		&e.CreatedAt, &e.UpdatedAt, &createdBy, &updatedBy, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}
	e.Category = category.String
	e.Description = description.String
	e.Author = author.String
	e.DeployedBy = deployedBy.String
	e.CreatedBy = createdBy.String
	e.UpdatedBy = updatedBy.String
	e.DeletedBy = deletedBy.String
	if deployedAt.Valid {
		e.DeployedAt = &deployedAt.Time
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Time
	}
	if cpu.Valid {
		v := cpu.String
		e.Resources.CPU = &v
	}
	if mem.Valid {
		v := mem.String
		e.Resources.Memory = &v
	}
	if gpu.Valid {
		v := gpu.String
		e.Resources.GPU = &v
	}
	if e.Tags, err = unmarshalStrings(tags); err != nil {
		return nil, err
	}
	if e.Requirements, err = unmarshalStrings(requirements); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(config, &e.Config); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(parameters, &e.Parameters); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(deploymentConfig, &e.DeploymentConfig); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *sqlStore) CreateEntity(ctx context.Context, e *core.Entity) error {
	tags, _ := marshalJSON(e.Tags)
	config, _ := marshalJSON(e.Config)
	parameters, _ := marshalJSON(e.Parameters)
	requirements, _ := marshalJSON(e.Requirements)
	deploymentConfig, _ := marshalJSON(e.DeploymentConfig)

	q := fmt.Sprintf(`INSERT INTO entities (%s) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		entityColumns,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5),
		s.dialect.ph(6), s.dialect.ph(7), s.dialect.ph(8), s.dialect.ph(9), s.dialect.ph(10),
		s.dialect.ph(11), s.dialect.ph(12), s.dialect.ph(13), s.dialect.ph(14), s.dialect.ph(15),
		s.dialect.ph(16), s.dialect.ph(17), s.dialect.ph(18), s.dialect.ph(19), s.dialect.ph(20),
		s.dialect.ph(21), s.dialect.ph(22), s.dialect.ph(23), s.dialect.ph(24), s.dialect.ph(25))

	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.Name, e.Type, nullIfEmpty(e.Category), nullIfEmpty(e.Description), e.Version, nullIfEmpty(e.Author),
		tags, config, parameters, requirements, e.Status, e.HealthStatus,
		e.DeployedAt, nullIfEmpty(e.DeployedBy), deploymentConfig,
		e.Resources.CPU, e.Resources.Memory, e.Resources.GPU,
		e.CreatedAt, e.UpdatedAt, nullIfEmpty(e.CreatedBy), nullIfEmpty(e.UpdatedBy), e.DeletedAt, nullIfEmpty(e.DeletedBy),
	)
	return translateErr(err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *sqlStore) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM entities WHERE id = %s AND deleted_at IS NULL`, entityColumns, s.dialect.ph(1))
	row := s.db.QueryRowContext(ctx, q, id)
	e, err := scanEntity(row)
	err = translateErr(err)
	s.observe("get_entity", start, err)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *sqlStore) GetEntityByName(ctx context.Context, name string) (*core.Entity, error) {
	q := fmt.Sprintf(`SELECT %s FROM entities WHERE name = %s AND deleted_at IS NULL`, entityColumns, s.dialect.ph(1))
	row := s.db.QueryRowContext(ctx, q, name)
	e, err := scanEntity(row)
	if err != nil {
		return nil, translateErr(err)
	}
	return e, nil
}

func (s *sqlStore) SaveEntity(ctx context.Context, e *core.Entity) error {
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

	res, err := s.db.ExecContext(ctx, q,
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

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver doesn't support RowsAffected; assume success
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *sqlStore) SoftDeleteEntity(ctx context.Context, id, deletedBy string, at time.Time) error {
	q := fmt.Sprintf(`UPDATE entities SET deleted_at=%s, deleted_by=%s, updated_at=%s WHERE id=%s AND deleted_at IS NULL`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4))
	res, err := s.db.ExecContext(ctx, q, at, nullIfEmpty(deletedBy), at, id)
	if err != nil {
		return translateErr(err)
	}
	return checkRowsAffected(res)
}

func (s *sqlStore) ListEntities(ctx context.Context, f core.EntityFilters, pg core.Pagination) (page *core.Page[*core.Entity], err error) {
	start := time.Now()
	defer func() { s.observe("list_entities", start, err) }()

	where := []string{"deleted_at IS NULL"}
	var args []any
	n := 0
	add := func(clause string, v any) {
		n++
		where = append(where, fmt.Sprintf(clause, s.dialect.ph(n)))
		args = append(args, v)
	}
	if f.Type != nil {
		add("type = %s", *f.Type)
	}
	if f.Category != nil {
		add("category = %s", *f.Category)
	}
	if f.Status != nil {
		add("status = %s", *f.Status)
	}
	if f.HealthStatus != nil {
		add("health_status = %s", *f.HealthStatus)
	}
	if f.Search != "" {
		n++
		where = append(where, fmt.Sprintf("(name LIKE %s OR description LIKE %s)", s.dialect.ph(n), s.dialect.ph(n)))
		args = append(args, "%"+f.Search+"%")
	}
	if len(f.Tags) > 0 {
		// tags is a JSON-array-encoded TEXT column; a quoted-literal LIKE
		// match is the containment test (spec §4.6 "tag overlap uses
		// set-intersection semantics": any requested tag present matches).
		var tagClauses []string
		for _, tag := range f.Tags {
			n++
			tagClauses = append(tagClauses, fmt.Sprintf("tags LIKE %s", s.dialect.ph(n)))
			args = append(args, "%\""+tag+"\"%")
		}
		where = append(where, "("+strings.Join(tagClauses, " OR ")+")")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQ := fmt.Sprintf(`SELECT count(*) FROM entities WHERE %s`, whereClause)
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, translateErr(err)
	}

	limitPh := s.dialect.ph(n + 1)
	offsetPh := s.dialect.ph(n + 2)
	listQ := fmt.Sprintf(`SELECT %s FROM entities WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		entityColumns, whereClause, limitPh, offsetPh)
	listArgs := append(append([]any{}, args...), pg.PageSize, pg.Offset())

	rows, err := s.db.QueryContext(ctx, listQ, listArgs...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var items []*core.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &core.Page[*core.Entity]{Items: items, Total: total, Page: pg.Page, PageSize: pg.PageSize}, nil
}

// ---- dependencies ----

func (s *sqlStore) CreateDependency(ctx context.Context, d *core.Dependency) error {
	q := fmt.Sprintf(`INSERT INTO dependencies (id, entity_id, depends_on_entity_id, dependency_type, min_version, max_version, status)
		VALUES (%s,%s,%s,%s,%s,%s,%s)`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5), s.dialect.ph(6), s.dialect.ph(7))
	_, err := s.db.ExecContext(ctx, q, d.ID, d.EntityID, d.DependsOnEntityID, d.DependencyType,
		nullIfEmpty(d.MinVersion), nullIfEmpty(d.MaxVersion), d.Status)
	return translateErr(err)
}

func (s *sqlStore) ListDependencies(ctx context.Context, entityID string) ([]*core.DependencyView, error) {
	q := fmt.Sprintf(`SELECT d.id, d.dependency_type, d.min_version, d.max_version, %s
		FROM dependencies d JOIN entities e ON e.id = d.depends_on_entity_id
		WHERE d.entity_id = %s AND d.status = 'active' AND e.deleted_at IS NULL`,
		prefixColumns("e", entityColumns), s.dialect.ph(1))
	rows, err := s.db.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*core.DependencyView
	for rows.Next() {
		var v core.DependencyView
		var minV, maxV sql.NullString
		// scan id/type/min/max manually, then delegate entity columns to scanEntity via a combinedScanner
		cs := &combinedScanner{outer: []any{&v.DependencyID, &v.DependencyType, &minV, &maxV}}
		e, err := scanEntityWithPrefix(rows, cs)
		if err != nil {
			return nil, err
		}
		v.MinVersion = minV.String
		v.MaxVersion = maxV.String
		v.Entity = e
		out = append(out, &v)
	}
	return out, rows.Err()
}

// combinedScanner and scanEntityWithPrefix let ListDependencies scan a
// join row (four dependency columns followed by the full entity column
// set) through the same scanEntity machinery used elsewhere.
type combinedScanner struct {
	outer []any
}

func scanEntityWithPrefix(rows *sql.Rows, cs *combinedScanner) (*core.Entity, error) {
	var e core.Entity
	var tags, config, parameters, requirements, deploymentConfig []byte
	var cpu, mem, gpu sql.NullString
	var deployedBy, author, category, description, createdBy, updatedBy, deletedBy sql.NullString
	var deployedAt, deletedAt sql.NullTime

	dest := append(append([]any{}, cs.outer...),
		&e.ID, &e.Name, &e.Type, &category, &description, &e.Version, &author,
		&tags, &config, &parameters, &requirements, &e.Status, &e.HealthStatus,
		&deployedAt, &deployedBy, &deploymentConfig,
		&cpu, &mem, &gpu,
		&e.CreatedAt, &e.UpdatedAt, &createdBy, &updatedBy, &deletedAt, &deletedBy,
	)
	if err := rows.Scan(dest...); err != nil {
		return nil, translateErr(err)
	}
	e.Category = category.String
	e.Description = description.String
	e.Author = author.String
	e.DeployedBy = deployedBy.String
	e.CreatedBy = createdBy.String
	e.UpdatedBy = updatedBy.String
	e.DeletedBy = deletedBy.String
	if deployedAt.Valid {
		e.DeployedAt = &deployedAt.Time
	}
	if deletedAt.Valid {
		e.DeletedAt = &deletedAt.Time
	}
	if cpu.Valid {
		v := cpu.String
		e.Resources.CPU = &v
	}
	if mem.Valid {
		v := mem.String
		e.Resources.Memory = &v
	}
	if gpu.Valid {
		v := gpu.String
		e.Resources.GPU = &v
	}
	var err error
	if e.Tags, err = unmarshalStrings(tags); err != nil {
		return nil, err
	}
	if e.Requirements, err = unmarshalStrings(requirements); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(config, &e.Config); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(parameters, &e.Parameters); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(deploymentConfig, &e.DeploymentConfig); err != nil {
		return nil, err
	}
	return &e, nil
}

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func (s *sqlStore) AllDependencyEdges(ctx context.Context) ([]core.Dependency, error) {
	q := `SELECT id, entity_id, depends_on_entity_id, dependency_type, min_version, max_version, status
		FROM dependencies WHERE status = 'active'`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []core.Dependency
	for rows.Next() {
		var d core.Dependency
		var minV, maxV sql.NullString
		if err := rows.Scan(&d.ID, &d.EntityID, &d.DependsOnEntityID, &d.DependencyType, &minV, &maxV, &d.Status); err != nil {
			return nil, err
		}
		d.MinVersion = minV.String
		d.MaxVersion = maxV.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- deployments ----

const deploymentColumns = `id, entity_id, version, environment, config_snapshot, parameters_snapshot,
	status, deployed_at, deployed_by, deployment_method,
	rolled_back_at, rolled_back_by, rollback_reason, previous_deployment_id,
	validation_results, error_logs, duration_seconds,
	health_checks, last_health_check, created_at, updated_at`

func scanDeployment(r rowScanner) (*core.Deployment, error) {
	var d core.Deployment
	var configSnap, paramsSnap, validationResults, errorLogs, healthChecks []byte
	var deployedBy, method, rolledBackBy, rollbackReason, prevID sql.NullString
	var deployedAt, rolledBackAt, lastHealthCheck sql.NullTime
	var duration sql.NullFloat64

	err := r.Scan(
		&d.ID, &d.EntityID, &d.Version, &d.Environment, &configSnap, &paramsSnap,
		&d.Status, &deployedAt, &deployedBy, &method,
		&rolledBackAt, &rolledBackBy, &rollbackReason, &prevID,
		&validationResults, &errorLogs, &duration,
		&healthChecks, &lastHealthCheck, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.DeployedBy = deployedBy.String
	d.DeploymentMethod = method.String
	d.RolledBackBy = rolledBackBy.String
	d.RollbackReason = rollbackReason.String
	if deployedAt.Valid {
		d.DeployedAt = &deployedAt.Time
	}
	if rolledBackAt.Valid {
		d.RolledBackAt = &rolledBackAt.Time
	}
	if lastHealthCheck.Valid {
		d.LastHealthCheck = &lastHealthCheck.Time
	}
	if prevID.Valid {
		d.PreviousDeploymentID = &prevID.String
	}
	if duration.Valid {
		d.DurationSeconds = &duration.Float64
	}
	if err := unmarshalJSONObject(configSnap, &d.ConfigSnapshot); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(paramsSnap, &d.ParametersSnapshot); err != nil {
		return nil, err
	}
	if err := unmarshalJSONObject(healthChecks, &d.HealthChecks); err != nil {
		return nil, err
	}
	if d.ErrorLogs, err = unmarshalStrings(errorLogs); err != nil {
		return nil, err
	}
	if len(validationResults) > 0 && string(validationResults) != "null" {
		var vr core.ValidationResult
		if err := json.Unmarshal(validationResults, &vr); err != nil {
			return nil, err
		}
		d.ValidationResults = &vr
	}
	return &d, nil
}

func (s *sqlStore) GetDeployment(ctx context.Context, id string) (*core.Deployment, error) {
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE id = %s`, deploymentColumns, s.dialect.ph(1))
	d, err := scanDeployment(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, translateErr(err)
	}
	return d, nil
}

func (s *sqlStore) ListDeployments(ctx context.Context, f core.DeploymentFilters, pg core.Pagination) (*core.Page[*core.Deployment], error) {
	where := []string{"1=1"}
	var args []any
	n := 0
	add := func(clause string, v any) {
		n++
		where = append(where, fmt.Sprintf(clause, s.dialect.ph(n)))
		args = append(args, v)
	}
	if f.EntityID != nil {
		add("entity_id = %s", *f.EntityID)
	}
	if f.Environment != nil {
		add("environment = %s", *f.Environment)
	}
	if f.Status != nil {
		add("status = %s", *f.Status)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM deployments WHERE %s`, whereClause), args...).Scan(&total); err != nil {
		return nil, translateErr(err)
	}

	listQ := fmt.Sprintf(`SELECT %s FROM deployments WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		deploymentColumns, whereClause, s.dialect.ph(n+1), s.dialect.ph(n+2))
	rows, err := s.db.QueryContext(ctx, listQ, append(append([]any{}, args...), pg.PageSize, pg.Offset())...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var items []*core.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return &core.Page[*core.Deployment]{Items: items, Total: total, Page: pg.Page, PageSize: pg.PageSize}, rows.Err()
}

func (s *sqlStore) ListDeploymentsByEntity(ctx context.Context, entityID string) ([]*core.Deployment, error) {
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s ORDER BY created_at DESC`, deploymentColumns, s.dialect.ph(1))
	rows, err := s.db.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []*core.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) ActiveDeployment(ctx context.Context, entityID string, env core.Environment) (*core.Deployment, error) {
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s AND environment = %s AND status = 'active'
		ORDER BY deployed_at DESC LIMIT 1`, deploymentColumns, s.dialect.ph(1), s.dialect.ph(2))
	d, err := scanDeployment(s.db.QueryRowContext(ctx, q, entityID, env))
	if err != nil {
		return nil, translateErr(err)
	}
	return d, nil
}

func (s *sqlStore) PreviousActiveDeployment(ctx context.Context, entityID string, env core.Environment, before time.Time) (*core.Deployment, error) {
	q := fmt.Sprintf(`SELECT %s FROM deployments WHERE entity_id = %s AND environment = %s
		AND status = 'inactive' AND deployed_at < %s ORDER BY deployed_at DESC LIMIT 1`,
		deploymentColumns, s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3))
	d, err := scanDeployment(s.db.QueryRowContext(ctx, q, entityID, env, before))
	if err != nil {
		return nil, translateErr(err)
	}
	return d, nil
}

// ---- swaps ----

const swapColumns = `id, from_entity_id, to_entity_id, from_deployment_id, to_deployment_id,
	swap_type, status, reason, initiated_by, initiated_at, completed_at,
	duration_seconds, downtime_milliseconds, success, error_message, validation_results,
	rolled_back_at, rolled_back_by, rollback_reason, affected_deployment_ids, target_environment`

func scanSwap(r rowScanner) (*core.Swap, error) {
	var sw core.Swap
	var fromDepID, toDepID sql.NullString
	var reason, initiatedBy, errorMsg, rolledBackBy, rollbackReason sql.NullString
	var completedAt, rolledBackAt sql.NullTime
	var duration sql.NullFloat64
	var downtime sql.NullInt64
	var success sql.NullBool
	var validationResults, affectedIDs []byte
	var targetEnv sql.NullString

	err := r.Scan(
		&sw.ID, &sw.FromEntityID, &sw.ToEntityID, &fromDepID, &toDepID,
		&sw.SwapType, &sw.Status, &reason, &initiatedBy, &sw.InitiatedAt, &completedAt,
		&duration, &downtime, &success, &errorMsg, &validationResults,
		&rolledBackAt, &rolledBackBy, &rollbackReason, &affectedIDs, &targetEnv,
	)
	if err != nil {
		return nil, err
	}
	sw.Reason = reason.String
	sw.InitiatedBy = initiatedBy.String
	sw.ErrorMessage = errorMsg.String
	sw.RolledBackBy = rolledBackBy.String
	sw.RollbackReason = rollbackReason.String
	if fromDepID.Valid {
		sw.FromDeploymentID = &fromDepID.String
	}
	if toDepID.Valid {
		sw.ToDeploymentID = &toDepID.String
	}
	if completedAt.Valid {
		sw.CompletedAt = &completedAt.Time
	}
	if rolledBackAt.Valid {
		sw.RolledBackAt = &rolledBackAt.Time
	}
	if duration.Valid {
		sw.DurationSeconds = &duration.Float64
	}
	if downtime.Valid {
		sw.DowntimeMillis = &downtime.Int64
	}
	if success.Valid {
		sw.Success = &success.Bool
	}
	if targetEnv.Valid {
		env := core.Environment(targetEnv.String)
		sw.TargetEnvironment = &env
	}
	if sw.AffectedDeploymentIDs, err = unmarshalStrings(affectedIDs); err != nil {
		return nil, err
	}
	if len(validationResults) > 0 && string(validationResults) != "null" {
		var vr core.ValidationResult
		if err := json.Unmarshal(validationResults, &vr); err != nil {
			return nil, err
		}
		sw.ValidationResults = &vr
	}
	return &sw, nil
}

func (s *sqlStore) GetSwap(ctx context.Context, id string) (*core.Swap, error) {
	q := fmt.Sprintf(`SELECT %s FROM swaps WHERE id = %s`, swapColumns, s.dialect.ph(1))
	sw, err := scanSwap(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, translateErr(err)
	}
	return sw, nil
}

func (s *sqlStore) ListSwaps(ctx context.Context, f core.SwapFilters, pg core.Pagination) (*core.Page[*core.Swap], error) {
	where := []string{"1=1"}
	var args []any
	n := 0
	if f.EntityID != nil {
		n++
		where = append(where, fmt.Sprintf("(from_entity_id = %s OR to_entity_id = %s)", s.dialect.ph(n), s.dialect.ph(n)))
		args = append(args, *f.EntityID)
	}
	if f.Status != nil {
		n++
		where = append(where, fmt.Sprintf("status = %s", s.dialect.ph(n)))
		args = append(args, *f.Status)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM swaps WHERE %s`, whereClause), args...).Scan(&total); err != nil {
		return nil, translateErr(err)
	}
	listQ := fmt.Sprintf(`SELECT %s FROM swaps WHERE %s ORDER BY initiated_at DESC LIMIT %s OFFSET %s`,
		swapColumns, whereClause, s.dialect.ph(n+1), s.dialect.ph(n+2))
	rows, err := s.db.QueryContext(ctx, listQ, append(append([]any{}, args...), pg.PageSize, pg.Offset())...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var items []*core.Swap
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, sw)
	}
	return &core.Page[*core.Swap]{Items: items, Total: total, Page: pg.Page, PageSize: pg.PageSize}, rows.Err()
}

func (s *sqlStore) ListSwapsByEntity(ctx context.Context, entityID string) ([]*core.Swap, error) {
	q := fmt.Sprintf(`SELECT %s FROM swaps WHERE from_entity_id = %s OR to_entity_id = %s ORDER BY initiated_at DESC`,
		swapColumns, s.dialect.ph(1), s.dialect.ph(2))
	rows, err := s.db.QueryContext(ctx, q, entityID, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []*core.Swap
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveSwap(ctx context.Context, sw *core.Swap) error {
	return s.saveSwap(ctx, s.db, sw)
}

func (s *sqlStore) saveSwap(ctx context.Context, execer execer, sw *core.Swap) error {
	validationResults, _ := marshalJSON(sw.ValidationResults)
	affectedIDs, _ := marshalJSON(sw.AffectedDeploymentIDs)
	var targetEnv any
	if sw.TargetEnvironment != nil {
		targetEnv = *sw.TargetEnvironment
	}

	existsQ := fmt.Sprintf(`SELECT 1 FROM swaps WHERE id = %s`, s.dialect.ph(1))
	var dummy int
	err := execer.QueryRowContext(ctx, existsQ, sw.ID).Scan(&dummy)
	if err == sql.ErrNoRows {
		q := fmt.Sprintf(`INSERT INTO swaps (%s) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
			swapColumns,
			s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5),
			s.dialect.ph(6), s.dialect.ph(7), s.dialect.ph(8), s.dialect.ph(9), s.dialect.ph(10),
			s.dialect.ph(11), s.dialect.ph(12), s.dialect.ph(13), s.dialect.ph(14), s.dialect.ph(15),
			s.dialect.ph(16), s.dialect.ph(17), s.dialect.ph(18), s.dialect.ph(19), s.dialect.ph(20), s.dialect.ph(21))
		_, err := execer.ExecContext(ctx, q,
			sw.ID, sw.FromEntityID, sw.ToEntityID, sw.FromDeploymentID, sw.ToDeploymentID,
			sw.SwapType, sw.Status, nullIfEmpty(sw.Reason), nullIfEmpty(sw.InitiatedBy), sw.InitiatedAt, sw.CompletedAt,
			sw.DurationSeconds, sw.DowntimeMillis, sw.Success, nullIfEmpty(sw.ErrorMessage), validationResults,
			sw.RolledBackAt, nullIfEmpty(sw.RolledBackBy), nullIfEmpty(sw.RollbackReason), affectedIDs, targetEnv,
		)
		return translateErr(err)
	} else if err != nil {
		return translateErr(err)
	}

	q := fmt.Sprintf(`UPDATE swaps SET from_deployment_id=%s, to_deployment_id=%s, status=%s, completed_at=%s,
		duration_seconds=%s, downtime_milliseconds=%s, success=%s, error_message=%s, validation_results=%s,
		rolled_back_at=%s, rolled_back_by=%s, rollback_reason=%s, affected_deployment_ids=%s
		WHERE id=%s`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5),
		s.dialect.ph(6), s.dialect.ph(7), s.dialect.ph(8), s.dialect.ph(9), s.dialect.ph(10),
		s.dialect.ph(11), s.dialect.ph(12), s.dialect.ph(13), s.dialect.ph(14))
	_, err = execer.ExecContext(ctx, q,
		sw.FromDeploymentID, sw.ToDeploymentID, sw.Status, sw.CompletedAt,
		sw.DurationSeconds, sw.DowntimeMillis, sw.Success, nullIfEmpty(sw.ErrorMessage), validationResults,
		sw.RolledBackAt, nullIfEmpty(sw.RolledBackBy), nullIfEmpty(sw.RollbackReason), affectedIDs,
		sw.ID,
	)
	return translateErr(err)
}

// ---- events ----

func (s *sqlStore) InsertEvent(ctx context.Context, e *core.Event) error {
	return s.insertEvent(ctx, s.db, e)
}

func (s *sqlStore) insertEvent(ctx context.Context, execer execer, e *core.Event) error {
	details, _ := marshalJSON(e.Details)
	q := fmt.Sprintf(`INSERT INTO events (id, event_type, event_category, severity, entity_id, deployment_id, swap_id,
		message, details, user_id, source, occurred_at) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5), s.dialect.ph(6),
		s.dialect.ph(7), s.dialect.ph(8), s.dialect.ph(9), s.dialect.ph(10), s.dialect.ph(11), s.dialect.ph(12))
	_, err := execer.ExecContext(ctx, q,
		e.ID, e.EventType, e.EventCategory, e.Severity, e.EntityID, e.DeploymentID, e.SwapID,
		e.Message, details, nullIfEmpty(e.UserID), e.Source, e.OccurredAt,
	)
	return translateErr(err)
}

// ---- performance metrics ----

func (s *sqlStore) InsertPerformanceMetric(ctx context.Context, m *core.PerformanceMetric) error {
	q := fmt.Sprintf(`INSERT INTO performance_metrics (id, entity_id, deployment_id, swap_id, metric_type, value, recorded_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s)`,
		s.dialect.ph(1), s.dialect.ph(2), s.dialect.ph(3), s.dialect.ph(4), s.dialect.ph(5), s.dialect.ph(6), s.dialect.ph(7))
	_, err := s.db.ExecContext(ctx, q, m.ID, m.EntityID, m.DeploymentID, m.SwapID, m.MetricType, m.Value, m.RecordedAt)
	return translateErr(err)
}

func (s *sqlStore) ListPerformanceMetrics(ctx context.Context, entityID string) ([]*core.PerformanceMetric, error) {
	q := fmt.Sprintf(`SELECT id, entity_id, deployment_id, swap_id, metric_type, value, recorded_at
		FROM performance_metrics WHERE entity_id = %s ORDER BY recorded_at DESC`, s.dialect.ph(1))
	rows, err := s.db.QueryContext(ctx, q, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()
	var out []*core.PerformanceMetric
	for rows.Next() {
		var m core.PerformanceMetric
		var depID, swapID sql.NullString
		if err := rows.Scan(&m.ID, &m.EntityID, &depID, &swapID, &m.MetricType, &m.Value, &m.RecordedAt); err != nil {
			return nil, err
		}
		if depID.Valid {
			m.DeploymentID = &depID.String
		}
		if swapID.Valid {
			m.SwapID = &swapID.String
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// execer is the subset of *sql.DB / *sql.Tx used by write helpers shared
// between the top-level Gateway and the transactional Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
