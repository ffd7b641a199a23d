// Package sqlstore implements store.Store on SQL databases through sqlx:
// PostgreSQL via the pgx stdlib driver for production and SQLite via
// modernc.org/sqlite for single-node deployments and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shopledger/backend/internal/store"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects to the database, applies the schema and returns the store.
// driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver string, dsn string) (*Store, error) {
	var (
		db      *sqlx.DB
		dialect Dialect
		err     error
	)

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		dialect = Postgres
		db, err = sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxIdleConns(8)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	case "sqlite", "sqlite3":
		dialect = SQLite
		db, err = sqlx.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// One connection serializes writers, which is the isolation the
		// ledger needs on SQLite.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var opts *sql.TxOptions
	if s.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txn{q: tx, dialect: s.dialect}); err != nil {
		_ = tx.Rollback()
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// View reads inside a read-only transaction so every query of fn sees the
// same snapshot.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error {
	var opts *sql.TxOptions
	if s.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	return fn(ctx, &txn{q: tx, dialect: s.dialect})
}

// mapErr turns lost races into store.ErrConflict so the caller can retry the
// unit of work.
func mapErr(err error) error {
	if err == nil || errors.Is(err, store.ErrConflict) {
		return err
	}
	if isConflict(err) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// txn serves both View and WithTransaction.
type txn struct {
	q       sqlx.ExtContext
	dialect Dialect
}

func (t *txn) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, t.q, dest, t.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return mapErr(err)
}

func (t *txn) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return mapErr(sqlx.SelectContext(ctx, t.q, dest, t.q.Rebind(query), args...))
}

func (t *txn) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.q.ExecContext(ctx, t.q.Rebind(query), args...)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.RowsAffected()
}

// execOne runs a statement that must touch exactly one row.
func (t *txn) execOne(ctx context.Context, query string, args ...any) error {
	affected, err := t.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txn) forUpdate() string {
	if t.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func limitClause(limit int) string {
	if limit < 1 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
