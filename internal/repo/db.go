// Package repo contains all database access logic for the booking core.
// Each resource has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is the subset needed to open a transaction. Both *pgxpool.Pool and
// pgx.Tx satisfy it; a pgx.Tx opens a savepoint, so tests running inside a
// rolled-back transaction still exercise the transactional paths.
type beginner interface {
	db
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scan helpers to
// be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// IsRetryableConflict reports whether err is a transaction conflict worth a
// bounded retry against freshly-read state: a serialization failure, a
// deadlock, or a violation of the reservations_no_overlap exclusion
// constraint (two concurrent bookings racing for the same driver slot).
func IsRetryableConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"23P01": // exclusion_violation
		return true
	}
	return false
}
