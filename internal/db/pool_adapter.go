package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apereiratl/marten/pkg/marten"
)

// NewPoolFactory returns a marten.ConnectionFactory that acquires one pooled
// connection per session. Closing the connection returns it to the pool.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
func NewPoolFactory(pool *pgxpool.Pool) marten.ConnectionFactory {
	return marten.ConnectionFactoryFunc(func(ctx context.Context) (marten.Conn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return &pooledConnAdapter{conn: conn}, nil
	})
}

// NewDirectFactory returns a marten.ConnectionFactory that dials a new,
// unpooled connection for each session.
func NewDirectFactory(config *marten.ConnectionConfig) marten.ConnectionFactory {
	connStr := BuildConnectionString(config)
	return marten.ConnectionFactoryFunc(func(ctx context.Context) (marten.Conn, error) {
		connConfig, err := pgx.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse connection config: %v: %w", err, marten.ErrInvalidConfig)
		}
		if config.SearchPath != "" {
			connConfig.RuntimeParams["search_path"] = config.SearchPath
		}

		conn, err := pgx.ConnectConfig(ctx, connConfig)
		if err != nil {
			return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
		}
		return &directConnAdapter{Conn: conn}, nil
	})
}

// pooledConnAdapter adapts *pgxpool.Conn to marten.Conn.
type pooledConnAdapter struct {
	conn *pgxpool.Conn

	once     sync.Once
	released bool
}

func (p *pooledConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p *pooledConnAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.conn.Query(ctx, sql, args...)
}

func (p *pooledConnAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.conn.QueryRow(ctx, sql, args...)
}

func (p *pooledConnAdapter) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return p.conn.SendBatch(ctx, b)
}

func (p *pooledConnAdapter) BeginTx(ctx context.Context, opts pgx.TxOptions) (marten.Tx, error) {
	return p.conn.BeginTx(ctx, opts)
}

// Close returns the connection to the pool. Only the first call has an effect.
func (p *pooledConnAdapter) Close(context.Context) error {
	p.once.Do(func() {
		p.released = true
		p.conn.Release()
	})
	return nil
}

func (p *pooledConnAdapter) IsClosed() bool {
	return p.released || p.conn.Conn().IsClosed()
}

// directConnAdapter adapts *pgx.Conn to marten.Conn.
type directConnAdapter struct {
	*pgx.Conn
}

func (d *directConnAdapter) BeginTx(ctx context.Context, opts pgx.TxOptions) (marten.Tx, error) {
	return d.Conn.BeginTx(ctx, opts)
}

var (
	_ marten.Conn = (*pooledConnAdapter)(nil)
	_ marten.Conn = (*directConnAdapter)(nil)
)
