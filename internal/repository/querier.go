package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so ledger appends
// can join the transaction of whichever repository drives the state change.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the pool surface the repositories depend on. *pgxpool.Pool satisfies
// it in production; tests substitute a mock pool.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}
