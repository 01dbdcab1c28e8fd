// Command migrate applies or inspects the registry's database schema.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/strategylib/control-plane/internal/config"
	"github.com/strategylib/control-plane/internal/migrations"
)

var (
	configPath string
	logger     = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

func main() {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the control plane's database schema",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(upCmd(), statusCmd(), resetCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *migrations.Manager) error {
				if err := mgr.Up(ctx); err != nil {
					return err
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *migrations.Manager) error {
				version, err := mgr.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("current schema version: %d\n", version)
				return nil
			})
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Roll back every applied migration (test/dev databases only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *migrations.Manager) error {
				if err := mgr.Reset(ctx); err != nil {
					return err
				}
				logger.Info("migrations reset")
				return nil
			})
		},
	}
}

func withManager(ctx context.Context, fn func(context.Context, *migrations.Manager) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, dialect, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	mgr, err := migrations.New(db, dialect, logger)
	if err != nil {
		return fmt.Errorf("build migration manager: %w", err)
	}

	if err := fn(ctx, mgr); err != nil {
		logger.Error("migrate command failed", "error", err)
		return err
	}
	return nil
}

func openDB(cfg *config.Config) (*sql.DB, string, error) {
	switch cfg.Profile {
	case config.ProfileLite, "":
		db, err := sql.Open("sqlite", cfg.SQLite.Path)
		return db, "sqlite3", err
	case config.ProfileStandard:
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Database.Username, cfg.Database.Password, cfg.Database.Host,
			cfg.Database.Port, cfg.Database.Database, cfg.Database.SSLMode)
		db, err := sql.Open("pgx", dsn)
		return db, "postgres", err
	default:
		return nil, "", fmt.Errorf("unknown deployment profile %q", cfg.Profile)
	}
}
