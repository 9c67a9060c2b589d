// Package batch composes storage operations into one composite command.
//
// Parameters of every operation share one namespace, p0, p1, ... in the
// order they are added. The built command is sent as a single pipelined
// round trip; per-operation callbacks read their statement's result and
// per-operation exception transforms may replace its error.
package batch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/apereiratl/marten/internal/serialize"
	"github.com/apereiratl/marten/pkg/marten"
)

// Command accumulates storage operations, their callbacks and their
// exception transforms in parallel lists.
//
// Thread-Safety: NOT safe for concurrent use.
type Command struct {
	enumStorage marten.EnumStorage
	serializer  marten.Serializer

	cmd     *marten.Command
	counter int

	calls      []marten.StorageOperation
	callbacks  []marten.Callback
	transforms []marten.ExceptionTransform

	built *marten.Command
}

// Option configures a Command.
type Option func(*Command)

// WithEnumStorage sets how enum-like values are sent.
func WithEnumStorage(storage marten.EnumStorage) Option {
	return func(b *Command) { b.enumStorage = storage }
}

// WithSerializer sets the serializer for JSON parameters. Its enum storage
// applies unless WithEnumStorage comes later.
func WithSerializer(s marten.Serializer) Option {
	return func(b *Command) {
		if s == nil {
			return
		}
		b.serializer = s
		b.enumStorage = s.EnumStorage()
	}
}

// New creates an empty batch.
func New(opts ...Option) *Command {
	b := &Command{
		enumStorage: marten.EnumAsInteger,
		cmd:         marten.NewCommand(""),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.serializer == nil {
		b.serializer = serialize.NewJSONSerializer(b.enumStorage)
	}
	return b
}

// EnumStorage returns how enum-like values are sent.
func (b *Command) EnumStorage() marten.EnumStorage { return b.enumStorage }

// Serializer returns the serializer for JSON parameters.
func (b *Command) Serializer() marten.Serializer { return b.serializer }

// AddParameter allocates the next p{n} parameter. Names are unique within
// the built command; BuildCommand allocates them afresh from p0.
func (b *Command) AddParameter(value any, dbType marten.DbType) *marten.Parameter {
	name := marten.ParameterPrefix + strconv.Itoa(b.counter)
	b.counter++
	return b.cmd.AddNamedParameter(name, value, dbType)
}

// AddCall appends an operation with its optional callback and exception transform.
func (b *Command) AddCall(op marten.StorageOperation, callback marten.Callback, transform marten.ExceptionTransform) {
	b.calls = append(b.calls, op)
	b.callbacks = append(b.callbacks, callback)
	b.transforms = append(b.transforms, transform)
	b.built = nil
}

// Sproc appends a stored procedure call and returns it for adding arguments.
func (b *Command) Sproc(function marten.DbObjectName, callback marten.Callback, transform marten.ExceptionTransform) (*SprocCall, error) {
	if function.IsEmpty() {
		return nil, fmt.Errorf("stored procedure name is required: %w", marten.ErrInvalidArgument)
	}
	call := newSprocCall(b, function)
	b.AddCall(call, callback, transform)
	return call, nil
}

// Count is the number of operations in the batch.
func (b *Command) Count() int { return len(b.calls) }

// Operations returns the operations in the order they were added.
func (b *Command) Operations() []marten.StorageOperation {
	return append([]marten.StorageOperation(nil), b.calls...)
}

// HasCallbacks reports whether any operation registered a callback.
func (b *Command) HasCallbacks() bool {
	for _, cb := range b.callbacks {
		if cb != nil {
			return true
		}
	}
	return false
}

// HasExceptionTransforms reports whether any operation registered an exception transform.
func (b *Command) HasExceptionTransforms() bool {
	for _, tr := range b.transforms {
		if tr != nil {
			return true
		}
	}
	return false
}

type erroring interface {
	Err() error
}

// BuildCommand renders every operation, one statement each, into the
// composite command. The result is cached until the batch changes.
func (b *Command) BuildCommand() (*marten.Command, error) {
	if b.built != nil {
		return b.built, nil
	}

	b.cmd = marten.NewCommand("")
	b.counter = 0

	builder := marten.NewCommandBuilder(b.cmd, b)
	statements := 0
	for i, op := range b.calls {
		if e, ok := op.(erroring); ok && e.Err() != nil {
			return nil, fmt.Errorf("operation %d: %w", i, e.Err())
		}

		op.ConfigureCommand(builder)
		builder.EndStatement()
		if builder.StatementCount() != statements+1 {
			return nil, fmt.Errorf("operation %d (%T) produced no SQL: %w", i, op, marten.ErrInvalidArgument)
		}
		statements++
	}

	b.built = builder.Command()
	return b.built, nil
}

// Execute runs the batch through conn as one command. Callbacks and
// exception transforms run in operation order against their statement's result.
func (b *Command) Execute(ctx context.Context, conn marten.ManagedConnection) error {
	if b.Count() == 0 {
		return nil
	}

	cmd, err := b.BuildCommand()
	if err != nil {
		return err
	}
	return conn.Execute(ctx, cmd, b.run)
}

func (b *Command) run(ctx context.Context, cmd *marten.Command) error {
	results, err := cmd.SendBatch(ctx)
	if err != nil {
		return err
	}

	for i := range b.calls {
		if err := b.process(ctx, i, results); err != nil {
			_ = results.Close()
			return err
		}
	}
	return results.Close()
}

func (b *Command) process(ctx context.Context, i int, results pgx.BatchResults) error {
	var err error
	if cb := b.callbacks[i]; cb != nil {
		err = cb.Postprocess(ctx, results)
	} else {
		_, err = results.Exec()
	}
	if err == nil {
		return nil
	}

	if tr := b.transforms[i]; tr != nil {
		if transformed, ok := tr.TryTransform(err); ok {
			return transformed
		}
	}
	return err
}

var _ marten.ParameterAllocator = (*Command)(nil)
