package marten

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// CommandAction does the work of one execution attempt against a bound command.
// It may run more than once when the session retries.
type CommandAction func(ctx context.Context, cmd *Command) error

// ManagedConnection is the command-capable session handed to the mapping
// and query layers.
//
// Thread-Safety: NOT safe for concurrent use. Each goroutine should have
// its own session.
type ManagedConnection interface {
	// Execute binds cmd to the session's connection and runs action through
	// the retry policy. A nil cmd gets a fresh command; a nil action runs cmd.Exec.
	Execute(ctx context.Context, cmd *Command, action CommandAction) error

	// BeginTransaction opens the connection if needed and begins a transaction.
	BeginTransaction(ctx context.Context) error

	// BeginSession begins a transaction right away when the isolation level is serializable.
	BeginSession(ctx context.Context) error

	// Commit commits the active transaction and releases the connection.
	Commit(ctx context.Context) error

	// Rollback rolls back and releases the connection. Failures are logged, never returned.
	Rollback(ctx context.Context)

	// InTransaction reports whether a transaction is active.
	InTransaction() bool

	// RequestCount is the number of Execute calls that reached the connection.
	RequestCount() int

	// Connection opens the connection if needed and returns it.
	Connection(ctx context.Context) (Conn, error)

	// IsolationLevel is the level used for transactions the session begins.
	IsolationLevel() pgx.TxIsoLevel

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// ExecuteValue runs fn through conn and returns the value of the attempt that succeeded.
//
// Example usage:
//
//	count, err := marten.ExecuteValue(ctx, session, cmd, func(ctx context.Context, c *marten.Command) (int64, error) {
//	    var n int64
//	    err := c.QueryRow(ctx).Scan(&n)
//	    return n, err
//	})
func ExecuteValue[T any](ctx context.Context, conn ManagedConnection, cmd *Command, fn func(ctx context.Context, cmd *Command) (T, error)) (T, error) {
	var result T
	err := conn.Execute(ctx, cmd, func(ctx context.Context, c *Command) error {
		v, err := fn(ctx, c)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
