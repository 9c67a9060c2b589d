package session

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apereiratl/marten/pkg/marten"
)

// mockTx records statements and lifecycle calls.
type mockTx struct {
	mu          sync.Mutex
	statements  []string
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
	execFn      func(sql string) error
	batches     []int
	batchErr    error
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	t.statements = append(t.statements, sql)
	fn := t.execFn
	t.mu.Unlock()
	if fn != nil {
		if err := fn(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported by mockTx")
}

func (t *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (t *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches = append(t.batches, b.Len())
	return &mockBatchResults{err: t.batchErr}
}

// mockBatchResults fails every statement with err, when set.
type mockBatchResults struct {
	err error
}

func (r *mockBatchResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("SELECT 1"), nil
}
func (r *mockBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *mockBatchResults) QueryRow() pgx.Row        { return nil }
func (r *mockBatchResults) Close() error             { return nil }

func (t *mockTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	return t.commitErr
}

func (t *mockTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	return t.rollbackErr
}

// mockConn is a connection whose behaviour is set through function fields.
type mockConn struct {
	mu         sync.Mutex
	statements []string
	closes     int
	closed     bool
	beginOpts  []pgx.TxOptions

	tx       *mockTx
	beginErr error
	execFn   func(sql string) error
}

func newMockConn() *mockConn {
	return &mockConn{tx: &mockTx{}}
}

func (c *mockConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	c.statements = append(c.statements, sql)
	fn := c.execFn
	c.mu.Unlock()
	if fn != nil {
		if err := fn(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (c *mockConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("query not supported by mockConn")
}

func (c *mockConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

func (c *mockConn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (c *mockConn) BeginTx(ctx context.Context, opts pgx.TxOptions) (marten.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beginOpts = append(c.beginOpts, opts)
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return c.tx, nil
}

func (c *mockConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closed = true
	return nil
}

func (c *mockConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) executed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// mockFactory hands out connections and counts the calls. Errors queued in
// failures are returned first.
type mockFactory struct {
	mu       sync.Mutex
	calls    int
	failures []error
	conns    []*mockConn
	next     func() *mockConn
}

func newMockFactory() *mockFactory {
	return &mockFactory{next: newMockConn}
}

func (f *mockFactory) Connect(ctx context.Context) (marten.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	conn := f.next()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *mockFactory) last() *mockConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

// recordingLogger captures session events.
type recordingLogger struct {
	successes      []*marten.Command
	failures       []error
	failedCommands []*marten.Command
	saved          []marten.ChangeSet
}

func (l *recordingLogger) LogSuccess(cmd *marten.Command) {
	l.successes = append(l.successes, cmd)
}

func (l *recordingLogger) LogFailure(cmd *marten.Command, err error) {
	l.failures = append(l.failures, err)
	l.failedCommands = append(l.failedCommands, cmd)
}

func (l *recordingLogger) RecordSavedChanges(_ marten.ManagedConnection, changes marten.ChangeSet) {
	l.saved = append(l.saved, changes)
}
