package marten

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectionFactory hands out an open physical connection for one session.
type ConnectionFactory interface {
	// Connect returns an open connection. The caller owns it and must Close it.
	Connect(ctx context.Context) (Conn, error)
}

// ConnectionFactoryFunc adapts an ordinary function to a ConnectionFactory.
type ConnectionFactoryFunc func(ctx context.Context) (Conn, error)

// Connect calls f(ctx).
func (f ConnectionFactoryFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// PoolConnector establishes connection pools.
// Different implementations handle various authentication methods
// (standard credentials, cloud IAM tokens, Cloud SQL dialers).
type PoolConnector interface {
	// Connect establishes a connection pool to the database.
	// The returned pool should be closed by the caller when done.
	Connect(ctx context.Context) (*pgxpool.Pool, error)
}
