package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations applies all pending migrations for the event log and the
// read model tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get migration version: %w", err)
	}

	db.logger.Info("migrations completed", "applied", len(results), "version", version)

	return nil
}

// Reset truncates every table. Integration tests call it between cases.
func (db *DB) Reset(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, "TRUNCATE task_history, task_records, task_events"); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	db.logger.Debug("database tables truncated")
	return nil
}
