package marten

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier runs statements on a connection or inside a transaction.
// *pgx.Conn, *pgxpool.Conn and pgx.Tx all satisfy it.
type Querier interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Errors are deferred until Row's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// SendBatch pipelines every queued statement in one round trip.
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Tx is an active database transaction. pgx.Tx satisfies it.
type Tx interface {
	Querier

	// Commit commits the transaction. Calling Commit on a finished transaction
	// returns an error.
	Commit(ctx context.Context) error

	// Rollback rolls the transaction back.
	Rollback(ctx context.Context) error
}

// Conn is one physical database connection owned by a single session at a time.
//
// Thread-Safety: NOT safe for concurrent use.
type Conn interface {
	Querier

	// BeginTx starts a transaction with the given options.
	BeginTx(ctx context.Context, opts pgx.TxOptions) (Tx, error)

	// Close closes the connection, or returns it to its pool.
	// After calling Close, the connection should not be used.
	Close(ctx context.Context) error

	// IsClosed reports whether Close was called or the connection was lost.
	IsClosed() bool
}
