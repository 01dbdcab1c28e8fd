package store

import (
	"context"
	"fmt"
	"time"
)

// Profile selects the deployment profile's storage backend (spec §4.6,
// grounded on the teacher's storage/factory.go DeploymentProfile).
type Profile string

const (
	ProfileLite     Profile = "lite"
	ProfileStandard Profile = "standard"
)

// Config is the subset of service configuration the factory needs to
// build a Gateway. Callers (internal/config) fill this in from viper.
type Config struct {
	Profile Profile

	SQLitePath string

	PostgresDSN             string
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration
	PostgresConnMaxIdleTime time.Duration

	CacheSize int
}

// New builds the Gateway for the configured profile, wrapped with the
// read-through cache when CacheSize > 0.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	var (
		gw  Gateway
		err error
	)
	switch cfg.Profile {
	case ProfileLite, "":
		gw, err = NewSQLiteGateway(ctx, SQLiteConfig{Path: cfg.SQLitePath})
	case ProfileStandard:
		gw, err = NewPostgresGateway(ctx, PostgresConfig{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.PostgresMaxOpenConns,
			MaxIdleConns:    cfg.PostgresMaxIdleConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
			ConnMaxIdleTime: cfg.PostgresConnMaxIdleTime,
		})
	default:
		return nil, fmt.Errorf("unknown store profile %q", cfg.Profile)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		gw = NewCachingGateway(gw, cfg.CacheSize)
	}
	return gw, nil
}
