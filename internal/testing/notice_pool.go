package testing

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apereiratl/marten/internal/db"
	"github.com/apereiratl/marten/pkg/marten"
)

// PoolWithNoticeCapture wraps a pgxpool.Pool with notice capture support.
type PoolWithNoticeCapture struct {
	*pgxpool.Pool
	Capture *NoticeCapture
}

// Factory returns a connection factory whose connections report to Capture.
func (p *PoolWithNoticeCapture) Factory() marten.ConnectionFactory {
	return db.NewPoolFactory(p.Pool)
}

// GetTestPoolWithNoticeCapture creates a pool to dbName with notice capture enabled.
// The pool is automatically closed when the test completes.
func GetTestPoolWithNoticeCapture(t *testing.T, connString, dbName string) *PoolWithNoticeCapture {
	t.Helper()

	capture := NewNoticeCapture()

	poolConfig, err := pgxpool.ParseConfig(TargetConnString(t, connString, dbName))
	if err != nil {
		t.Fatalf("Failed to parse pool config: %v", err)
	}
	poolConfig.ConnConfig.OnNotice = capture.Handler()

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &PoolWithNoticeCapture{
		Pool:    pool,
		Capture: capture,
	}
}
