package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteConfig configures the lite deployment profile's embedded store
// backend (spec §4.6 "lite profile").
type SQLiteConfig struct {
	Path string
}

// NewSQLiteGateway opens an embedded, pure-Go SQLite database, grounded
// on the teacher's infrastructure/sqlite_adapter.go SQLiteDatabase.
// WAL mode and a single-writer busy timeout stand in for the row locks
// postgres takes explicitly, since sqlite serializes writers itself.
func NewSQLiteGateway(ctx context.Context, cfg SQLiteConfig) (Gateway, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time, matches WAL semantics

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &sqlStore{db: db, dialect: dialect{kind: dialectSQLite}, metrics: newStoreMetrics("sqlite")}, nil
}
