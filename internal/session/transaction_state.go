package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/apereiratl/marten/pkg/marten"
)

const setReadOnly = "SET TRANSACTION READ ONLY"

// TransactionState owns one physical connection and at most one transaction.
//
// States: unopened, open, open with a transaction, finished. Once a commit or
// rollback released an owned connection the state is finished and Open fails
// with marten.ErrSessionFinished.
//
// Thread-Safety: NOT safe for concurrent use.
type TransactionState struct {
	factory        marten.ConnectionFactory
	mode           marten.Mode
	isolation      pgx.TxIsoLevel
	timeout        time.Duration
	ownsConnection bool

	conn     marten.Conn
	tx       marten.Tx
	finished bool
	disposed bool
}

// NewTransactionState creates a state that connects through factory on Open.
func NewTransactionState(factory marten.ConnectionFactory, mode marten.Mode, isolation pgx.TxIsoLevel, timeout time.Duration, ownsConnection bool) *TransactionState {
	return &TransactionState{
		factory:        factory,
		mode:           mode,
		isolation:      isolation,
		timeout:        timeout,
		ownsConnection: ownsConnection,
	}
}

// NewTransactionStateFor creates a state around a connection, and optionally
// a transaction, supplied by the caller.
func NewTransactionStateFor(conn marten.Conn, tx marten.Tx, mode marten.Mode, isolation pgx.TxIsoLevel, timeout time.Duration, ownsConnection bool) *TransactionState {
	return &TransactionState{
		mode:           mode,
		isolation:      isolation,
		timeout:        timeout,
		ownsConnection: ownsConnection,
		conn:           conn,
		tx:             tx,
	}
}

// IsOpen reports whether the state holds a live connection.
func (s *TransactionState) IsOpen() bool {
	return s.conn != nil && !s.conn.IsClosed()
}

// Open acquires the connection if the state does not have one yet.
func (s *TransactionState) Open(ctx context.Context) error {
	if s.finished || s.disposed {
		return marten.ErrSessionFinished
	}
	if s.IsOpen() {
		return nil
	}
	if s.conn != nil {
		return fmt.Errorf("supplied connection is closed: %w", marten.ErrConnectionFailed)
	}
	if s.factory == nil {
		return fmt.Errorf("no connection factory: %w", marten.ErrInvalidConfig)
	}

	conn, err := s.factory.Connect(ctx)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// BeginTransaction starts a transaction unless one is active or the mode
// leaves transactions to the caller. AutoCommit mode never starts one.
func (s *TransactionState) BeginTransaction(ctx context.Context) error {
	if s.tx != nil || s.mode == marten.ModeExternal || s.mode == marten.ModeAutoCommit {
		return nil
	}
	if err := s.Open(ctx); err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: s.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if s.mode == marten.ModeReadOnly {
		cmd := marten.NewCommand(setReadOnly)
		cmd.Bind(s.conn, tx, s.timeout)
		if _, err := cmd.Exec(ctx); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("mark transaction read only: %w", err)
		}
	}

	s.tx = tx
	return nil
}

// InTransaction reports whether a transaction is active.
func (s *TransactionState) InTransaction() bool {
	return s.tx != nil
}

// Apply binds cmd to the current connection, transaction and timeout.
func (s *TransactionState) Apply(cmd *marten.Command) {
	cmd.Bind(s.conn, s.tx, s.timeout)
}

// CreateCommand returns an empty command bound to this state.
func (s *TransactionState) CreateCommand() *marten.Command {
	cmd := marten.NewCommand("")
	s.Apply(cmd)
	return cmd
}

// Connection returns the physical connection, or nil before Open.
func (s *TransactionState) Connection() marten.Conn {
	return s.conn
}

// Transaction returns the active transaction, or nil.
func (s *TransactionState) Transaction() marten.Tx {
	return s.tx
}

// Commit commits the active transaction. In ModeExternal the transaction is
// left alone. An owned connection is closed afterwards.
func (s *TransactionState) Commit(ctx context.Context) error {
	if s.mode != marten.ModeExternal && s.tx != nil {
		tx := s.tx
		s.tx = nil
		if err := tx.Commit(ctx); err != nil {
			s.finish(ctx)
			return err
		}
	}
	s.finish(ctx)
	return nil
}

// Rollback rolls back the active transaction. A failure is returned as a
// *marten.RollbackError. An owned connection is closed afterwards either way.
func (s *TransactionState) Rollback(ctx context.Context) error {
	if s.mode == marten.ModeExternal {
		return nil
	}

	var rollbackErr error
	if s.tx != nil {
		tx := s.tx
		s.tx = nil
		if err := tx.Rollback(ctx); err != nil {
			rollbackErr = &marten.RollbackError{Err: err}
		}
	}
	s.finish(ctx)
	return rollbackErr
}

func (s *TransactionState) finish(ctx context.Context) {
	if !s.ownsConnection || s.conn == nil {
		return
	}
	_ = s.conn.Close(ctx)
	s.conn = nil
	s.finished = true
}

// Dispose ends an uncommitted transaction without committing it and closes
// an owned connection. Safe to call more than once.
func (s *TransactionState) Dispose(ctx context.Context) {
	if s.disposed {
		return
	}
	s.disposed = true

	if s.tx != nil && s.mode != marten.ModeExternal {
		_ = s.tx.Rollback(ctx)
	}
	s.tx = nil

	if s.ownsConnection && s.conn != nil {
		_ = s.conn.Close(ctx)
	}
	s.conn = nil
}
