package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrDuplicate reports a unique constraint violation on insert or update.
	ErrDuplicate = errors.New("duplicate record")
	// ErrForeignKey reports a write referencing a row that no longer exists.
	ErrForeignKey = errors.New("referenced record missing")
	// ErrTxConflict reports a transaction still failing serialization after
	// every retry.
	ErrTxConflict = errors.New("transaction conflict")
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"

	maxTxAttempts = 3
)

// sqlState extracts the SQLSTATE code from lib/pq and pgx errors.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

func isSerializationFailure(err error) bool {
	switch sqlState(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

// constraintError maps unique and foreign-key violations to ErrDuplicate and
// ErrForeignKey and wraps anything else.
func constraintError(op string, err error) error {
	switch sqlState(err) {
	case sqlStateUniqueViolation:
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case sqlStateForeignKeyViolation:
		return fmt.Errorf("%s: %w", op, ErrForeignKey)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// withTx runs fn inside a transaction, rolling back on any error.
func withTx(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// withSerializableTx runs fn at SERIALIZABLE isolation and retries it when
// PostgreSQL aborts the transaction with a serialization failure. fn must be
// safe to run more than once.
func withSerializableTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = withTx(ctx, db, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %w", ErrTxConflict, err)
}

// page normalises paging input: page >= 1 and 1 <= size <= 100, default 20.
func page(p, size int) (int, int, int) {
	if p < 1 {
		p = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return p, size, (p - 1) * size
}

func sortDirection(raw, fallback string) string {
	order := strings.ToUpper(raw)
	if order != "ASC" && order != "DESC" {
		return fallback
	}
	return order
}

// weekdayOrder sorts weekday columns Monday first.
const weekdayOrder = `CASE s.weekday WHEN 'MONDAY' THEN 1 WHEN 'TUESDAY' THEN 2 WHEN 'WEDNESDAY' THEN 3 WHEN 'THURSDAY' THEN 4 WHEN 'FRIDAY' THEN 5 WHEN 'SATURDAY' THEN 6 ELSE 7 END`

// civilDate renders t's calendar date for DATE columns so the session time
// zone never shifts it.
func civilDate(t time.Time) string {
	return t.Format("2006-01-02")
}
