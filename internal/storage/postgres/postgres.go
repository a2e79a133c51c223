// Package postgres opens a PostgreSQL-backed storage.Store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mmynk/settleup/internal/storage/sqlstore"
)

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New connects to databaseURL, verifies the connection and runs migrations.
func New(ctx context.Context, databaseURL string, pool PoolConfig) (*sqlstore.Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlstore.New(db, sqlstore.Postgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
