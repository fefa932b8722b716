// Package sqlite implements the storage interfaces over an embedded SQLite
// database file using sqlx. One writer runs at a time; foreign keys and
// cascade rules are enforced by the schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/storage"
)

const defaultLimit = 100

// Store is the SQLite-backed storage.Store. ext is either the root database
// handle or a transaction when the store is tx-scoped.
type Store struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database file and configures the
// connection: foreign keys on, generous busy timeout, single writer.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=120000&_journal_mode=WAL", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite supports one writer; serialising at the pool level avoids
	// SQLITE_BUSY churn between the API, the bot and the scheduler.
	db.SetMaxOpenConns(1)
	return &Store{db: db, ext: db}, nil
}

// New wraps an existing handle. Used by tests and the maintenance CLI.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InTx runs fn against a transaction-scoped store. Nested calls join the
// enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(storage.Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", wrapErr(err))
	}
	txStore := &Store{ext: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", wrapErr(err))
	}
	return nil
}

// wrapErr translates driver errors into the core's error kinds.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.ErrTimeout
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%v: %w", err, fault.ErrConstraint)
		}
	}
	return err
}

func limitOf(p storage.Page) int {
	if p.Limit <= 0 {
		return defaultLimit
	}
	return p.Limit
}
