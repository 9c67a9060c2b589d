package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/apereiratl/marten/internal/classify"
	"github.com/apereiratl/marten/internal/logging"
	"github.com/apereiratl/marten/internal/retry"
	"github.com/apereiratl/marten/pkg/marten"
)

func commitCommand() *marten.Command { return marten.NewCommand("COMMIT") }
func rollbackCommand() *marten.Command { return marten.NewCommand("ROLLBACK") }

// ManagedSession is the command-capable session. It builds its
// TransactionState lazily, counts requests, and routes every execution
// through its retry policy.
//
// Thread-Safety: NOT safe for concurrent use. Each goroutine should have
// its own ManagedSession.
type ManagedSession struct {
	factory        marten.ConnectionFactory
	mode           marten.Mode
	isolation      pgx.TxIsoLevel
	timeout        time.Duration
	ownsConnection bool
	adoptedConn    marten.Conn
	adoptedTx      marten.Tx

	retry  marten.RetryPolicy
	logger marten.SessionLogger

	state        *TransactionState
	requestCount int
	closed       bool
}

// Option configures a ManagedSession.
type Option func(*ManagedSession)

// WithMode sets the operating mode. Default: marten.ModeAutoCommit.
func WithMode(mode marten.Mode) Option {
	return func(s *ManagedSession) { s.mode = mode }
}

// WithIsolationLevel sets the level of transactions the session begins.
func WithIsolationLevel(level pgx.TxIsoLevel) Option {
	return func(s *ManagedSession) {
		if level != "" {
			s.isolation = level
		}
	}
}

// WithCommandTimeout bounds every command. Zero means no timeout.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(s *ManagedSession) { s.timeout = timeout }
}

// WithRetryPolicy sets the policy used for opening, executing and rolling back.
func WithRetryPolicy(policy marten.RetryPolicy) Option {
	return func(s *ManagedSession) {
		if policy != nil {
			s.retry = policy
		}
	}
}

// WithLogger attaches a session logger.
func WithLogger(logger marten.SessionLogger) Option {
	return func(s *ManagedSession) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOwnsConnection controls whether the session closes the connections it
// gets. Connections from a factory are owned unless this says otherwise.
func WithOwnsConnection(owns bool) Option {
	return func(s *ManagedSession) { s.ownsConnection = owns }
}

// New creates a session that connects through factory on first use.
// Configuration errors are reported before any connection is attempted.
func New(factory marten.ConnectionFactory, opts ...Option) (*ManagedSession, error) {
	return newSession(factory, nil, opts)
}

func newSession(factory marten.ConnectionFactory, conn marten.Conn, opts []Option) (*ManagedSession, error) {
	s := &ManagedSession{
		factory:        factory,
		adoptedConn:    conn,
		mode:           marten.ModeAutoCommit,
		isolation:      marten.DefaultIsolationLevel,
		ownsConnection: true,
		retry:          retry.Never(),
		logger:         logging.NullSessionLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	marten.SealTypeRegistry()
	return s, nil
}

// NewWithOptions creates a session around a caller-supplied connection and,
// optionally, a transaction the caller already started.
func NewWithOptions(options marten.SessionOptions, opts ...Option) (*ManagedSession, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}

	base := []Option{
		WithMode(options.Mode()),
		WithIsolationLevel(options.IsolationLevel),
		WithCommandTimeout(options.Timeout),
		WithOwnsConnection(options.OwnsConnection),
	}
	s, err := newSession(nil, options.Connection, append(base, opts...))
	if err != nil {
		return nil, err
	}
	s.adoptedTx = options.Transaction
	return s, nil
}

func (s *ManagedSession) validate() error {
	var errs []error

	if s.factory == nil && s.adoptedConn == nil {
		errs = append(errs, fmt.Errorf("connection factory is required: %w", marten.ErrInvalidConfig))
	}
	if !s.mode.IsValid() {
		errs = append(errs, fmt.Errorf("session mode %v: %w", s.mode, marten.ErrInvalidConfig))
	}
	if err := marten.ValidateTimeout(s.timeout); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Mode returns the operating mode.
func (s *ManagedSession) Mode() marten.Mode { return s.mode }

// IsolationLevel returns the level used for transactions the session begins.
func (s *ManagedSession) IsolationLevel() pgx.TxIsoLevel { return s.isolation }

// Logger returns the attached session logger.
func (s *ManagedSession) Logger() marten.SessionLogger { return s.logger }

// SetLogger replaces the session logger. A nil logger restores the no-op logger.
func (s *ManagedSession) SetLogger(logger marten.SessionLogger) {
	if logger == nil {
		logger = logging.NullSessionLogger{}
	}
	s.logger = logger
}

// RequestCount is the number of Execute calls that reached the connection.
func (s *ManagedSession) RequestCount() int { return s.requestCount }

// InTransaction reports whether a transaction is active.
func (s *ManagedSession) InTransaction() bool {
	return s.state != nil && s.state.InTransaction()
}

func (s *ManagedSession) newState() *TransactionState {
	if s.adoptedConn == nil {
		return NewTransactionState(s.factory, s.mode, s.isolation, s.timeout, s.ownsConnection)
	}

	// An external transaction outlives every state built for it; one the
	// session owns is gone after the first commit or rollback.
	tx := s.adoptedTx
	if s.mode != marten.ModeExternal {
		s.adoptedTx = nil
	}
	return NewTransactionStateFor(s.adoptedConn, tx, s.mode, s.isolation, s.timeout, s.ownsConnection)
}

func (s *ManagedSession) buildConnection(ctx context.Context) error {
	if s.closed {
		return marten.ErrSessionClosed
	}
	if s.state != nil {
		return nil
	}

	state := s.newState()
	if err := s.retry.Execute(ctx, state.Open); err != nil {
		state.Dispose(context.WithoutCancel(ctx))
		if errors.Is(err, marten.ErrConnectionFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", marten.ErrConnectionFailed, err)
	}
	s.state = state
	return nil
}

// Connection opens the connection if needed and returns it.
func (s *ManagedSession) Connection(ctx context.Context) (marten.Conn, error) {
	if err := s.buildConnection(ctx); err != nil {
		return nil, err
	}
	return s.state.Connection(), nil
}

func execNonQuery(ctx context.Context, cmd *marten.Command) error {
	_, err := cmd.Exec(ctx)
	return err
}

// Execute binds cmd to the session and runs action through the retry policy.
// A nil cmd gets a fresh command; a nil action executes cmd without reading rows.
//
// The request count grows by one per call no matter how many attempts run.
// On failure the connection is released, the failure logged, and driver
// errors are returned as *marten.CommandError or *marten.NotSupportedError.
// Other errors, cancellation included, are returned unchanged.
func (s *ManagedSession) Execute(ctx context.Context, cmd *marten.Command, action marten.CommandAction) error {
	if err := s.buildConnection(ctx); err != nil {
		return err
	}
	s.requestCount++

	state := s.state
	if cmd == nil {
		cmd = state.CreateCommand()
	}
	if action == nil {
		action = execNonQuery
	}

	err := s.retry.Execute(ctx, func(ctx context.Context) error {
		state.Apply(cmd)
		return action(ctx, cmd)
	})
	if err != nil {
		return s.handleCommandError(ctx, cmd, err)
	}

	s.logger.LogSuccess(cmd)
	return nil
}

func (s *ManagedSession) handleCommandError(ctx context.Context, cmd *marten.Command, err error) error {
	var rollbackErr error
	if s.mode != marten.ModeExternal && s.InTransaction() {
		rollbackErr = s.state.Rollback(context.WithoutCancel(ctx))
	}
	s.release(ctx)
	s.logger.LogFailure(cmd, err)
	if rollbackErr != nil {
		s.logger.LogFailure(rollbackCommand(), rollbackErr)
	}

	if classify.IsDriverError(err) {
		return classify.Error(cmd, err)
	}
	return err
}

// BeginTransaction opens the connection if needed and begins a transaction.
func (s *ManagedSession) BeginTransaction(ctx context.Context) error {
	if err := s.buildConnection(ctx); err != nil {
		return err
	}
	return s.state.BeginTransaction(ctx)
}

// BeginSession begins a transaction right away when the isolation level is serializable.
func (s *ManagedSession) BeginSession(ctx context.Context) error {
	if s.isolation == pgx.Serializable {
		return s.BeginTransaction(ctx)
	}
	return nil
}

// Commit commits the active transaction once and releases the connection.
// The commit is not retried: a commit that failed in transit may still have
// been applied by the server. In marten.ModeExternal Commit does nothing.
func (s *ManagedSession) Commit(ctx context.Context) error {
	if s.mode == marten.ModeExternal {
		return nil
	}
	if err := s.buildConnection(ctx); err != nil {
		return err
	}

	err := s.state.Commit(ctx)
	s.release(ctx)
	if err != nil {
		cmd := commitCommand()
		s.logger.LogFailure(cmd, err)
		if classify.IsDriverError(err) {
			return classify.Error(cmd, err)
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback rolls back the active transaction once and releases the
// connection. pgx closes a Tx whose rollback failed, so there is nothing to
// retry. Failures are logged and never returned, so they cannot hide the
// error that made the caller roll back.
func (s *ManagedSession) Rollback(ctx context.Context) {
	if s.state == nil || s.mode == marten.ModeExternal {
		return
	}

	err := s.state.Rollback(context.WithoutCancel(ctx))
	s.release(ctx)
	if err != nil {
		s.logger.LogFailure(rollbackCommand(), err)
	}
}

func (s *ManagedSession) release(ctx context.Context) {
	if s.state == nil {
		return
	}
	s.state.Dispose(context.WithoutCancel(ctx))
	s.state = nil
}

// Close releases the connection. Safe to call more than once; Execute fails
// with marten.ErrSessionClosed afterwards.
func (s *ManagedSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.release(context.Background())
	return nil
}

var _ marten.ManagedConnection = (*ManagedSession)(nil)
