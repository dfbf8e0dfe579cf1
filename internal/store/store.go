// Package store persists factor observations, financial atomics, and run
// audit records in PostgreSQL. Repositories speak to a narrow DB interface so
// tests can swap in pgxmock without a live database.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultSchema is the schema the long tables live in.
const DefaultSchema = "systematic_equity"
