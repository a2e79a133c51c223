// Package sqlstore implements storage.Store on top of database/sql.
//
// The same queries serve SQLite and PostgreSQL; queries are written with "?"
// placeholders and rebound for the target Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmynk/settleup/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Dialect selects the placeholder style of the target database.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// rebind rewrites "?" placeholders into "$1", "$2", ... for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store implements storage.Store using database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect

	// tx is set on the Store handed to an InTx callback; every query then
	// runs on it.
	tx *sql.Tx
}

// New wraps an open database handle and runs migrations.
// The Store takes ownership of db and closes it on Close.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// conn returns the transaction the Store is bound to, or the pool.
func (s *Store) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// InTx runs fn with a Store bound to a single transaction. The writes fn
// makes are committed together when it returns nil and rolled back
// otherwise. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.TxStore) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&Store{db: s.db, dialect: s.dialect, tx: tx})
	})
}

// inTx runs fn inside a transaction, committing when fn returns nil. On a
// transaction-bound Store fn joins the existing transaction.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mustAffect turns a zero-row update or delete into storage.ErrNotFound.
func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return nil
}
