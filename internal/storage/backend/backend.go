// Package backend opens the storage.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/internal/storage/postgres"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/internal/storage/sqlstore"
)

// Open connects to the database named by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.Storage) (storage.Store, error) {
	var (
		store *sqlstore.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err = sqlite.New(cfg.Path)
	case config.DriverPostgres:
		store, err = postgres.New(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Describe returns a log-safe description of where cfg points.
func Describe(cfg config.Storage) string {
	if cfg.Driver == config.DriverSQLite {
		return cfg.Path
	}
	return "postgres"
}
