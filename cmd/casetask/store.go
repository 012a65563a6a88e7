package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/mtlprog/casetask/internal/config"
	"github.com/mtlprog/casetask/internal/database"
	"github.com/mtlprog/casetask/internal/handler"
	"github.com/mtlprog/casetask/internal/repository"
	"github.com/mtlprog/casetask/internal/service"
	"github.com/mtlprog/casetask/internal/sqlitestore"
)

// store bundles the backend selected by --store.
type store struct {
	events  service.EventLog
	records service.ReadModel
	pinger  handler.Pinger
	close   func()
}

// openStore connects to the configured backend and applies its migrations.
func openStore(ctx context.Context, c *cli.Context) (*store, error) {
	switch backend := c.String("store"); backend {
	case config.StorePostgres:
		databaseURL := c.String("database-url")
		if databaseURL == "" {
			return nil, errors.New("database url is required for the postgres store")
		}

		db, err := database.New(ctx, databaseURL, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return &store{
			events:  repository.NewEventLog(db.Pool()),
			records: repository.NewTaskRecordRepository(db.Pool()),
			pinger:  db,
			close:   db.Close,
		}, nil

	case config.StoreSQLite:
		db, err := sqlitestore.Open(ctx, c.String("sqlite-path"), slog.Default())
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}

		return &store{
			events:  sqlitestore.NewEventLog(db),
			records: sqlitestore.NewTaskRecords(db),
			pinger:  db,
			close: func() {
				if err := db.Close(); err != nil {
					slog.Warn("failed to close sqlite store", "error", err)
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", backend, config.StorePostgres, config.StoreSQLite)
	}
}
