// Package migrations wraps goose for the registry's schema, trimmed
// from the teacher's infrastructure/migrations/manager.go down to the
// operations the service actually needs at startup and from the CLI:
// apply, status, and reset (the migrate CLI's reset subcommand).
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Manager applies the registry's goose migrations against either
// backend dialect.
type Manager struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

// New builds a Manager for an already-open database handle. dialect is
// "postgres" or "sqlite3" (goose's sqlite dialect name).
func New(db *sql.DB, dialect string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetBaseFS(sqlFiles)
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	return &Manager{db: db, dialect: dialect, logger: logger}, nil
}

// Up applies every pending migration.
func (m *Manager) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, "sql"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	m.logger.Info("migrations applied", "dialect", m.dialect)
	return nil
}

// Status reports the current applied version.
func (m *Manager) Status(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}

// Reset tears every migration back down to version 0; cmd/migrate's
// reset subcommand calls it.
func (m *Manager) Reset(ctx context.Context) error {
	if err := goose.DownToContext(ctx, m.db, "sql", 0); err != nil {
		return fmt.Errorf("reset migrations: %w", err)
	}
	return nil
}
