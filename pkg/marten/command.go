package marten

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DbType is the PostgreSQL type name a parameter is cast to.
type DbType string

const (
	DbTypeUnknown     DbType = ""
	DbTypeText        DbType = "text"
	DbTypeVarchar     DbType = "varchar"
	DbTypeInteger     DbType = "integer"
	DbTypeSmallint    DbType = "smallint"
	DbTypeBigint      DbType = "bigint"
	DbTypeReal        DbType = "real"
	DbTypeDouble      DbType = "double precision"
	DbTypeNumeric     DbType = "numeric"
	DbTypeBoolean     DbType = "boolean"
	DbTypeUUID        DbType = "uuid"
	DbTypeJSONB       DbType = "jsonb"
	DbTypeBytea       DbType = "bytea"
	DbTypeTimestamp   DbType = "timestamp without time zone"
	DbTypeTimestampTZ DbType = "timestamp with time zone"
	DbTypeDate        DbType = "date"
	DbTypeInterval    DbType = "interval"
)

// Array returns the array type of t.
func (t DbType) Array() DbType {
	if t == DbTypeUnknown || t.IsArray() {
		return t
	}
	return t + "[]"
}

// IsArray reports whether t names an array type.
func (t DbType) IsArray() bool {
	return strings.HasSuffix(string(t), "[]")
}

// Parameter is one named argument of a command.
type Parameter struct {
	Name  string
	Value any
	Type  DbType
	Size  int
}

// Placeholder renders the parameter reference for SQL text, with a cast when
// the type is known.
func (p *Parameter) Placeholder() string {
	if p.Type == DbTypeUnknown {
		return "@" + p.Name
	}
	if p.Size > 0 && (p.Type == DbTypeVarchar || p.Type == DbTypeNumeric) {
		return "@" + p.Name + "::" + string(p.Type) + "(" + strconv.Itoa(p.Size) + ")"
	}
	return "@" + p.Name + "::" + string(p.Type)
}

// Command is SQL text plus named parameters. A session binds the connection,
// transaction and timeout before each execution attempt.
//
// Parameters are referenced as @name in the text.
type Command struct {
	Text string

	// Statements holds the individual statements of a composite command.
	// When set, Text is their concatenation and is used for diagnostics only.
	Statements []string

	Parameters []*Parameter

	conn    Querier
	tx      Tx
	timeout time.Duration
}

// NewCommand creates an unbound command.
func NewCommand(text string) *Command {
	return &Command{Text: text}
}

// AddParameter appends a parameter named arg0, arg1, ... with a type
// inferred from the value.
func (c *Command) AddParameter(value any) *Parameter {
	t, _ := LookupDbType(value)
	return c.AddTypedParameter(value, t)
}

// AddTypedParameter appends a parameter named arg0, arg1, ... with an explicit type.
func (c *Command) AddTypedParameter(value any, dbType DbType) *Parameter {
	return c.AddNamedParameter(ArgumentPrefix+strconv.Itoa(len(c.Parameters)), value, dbType)
}

// AddNamedParameter appends a parameter with the given name.
func (c *Command) AddNamedParameter(name string, value any, dbType DbType) *Parameter {
	p := &Parameter{Name: name, Value: value, Type: dbType}
	c.Parameters = append(c.Parameters, p)
	return p
}

// Parameter returns the parameter with the given name, or nil.
func (c *Command) Parameter(name string) *Parameter {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Bind sets the connection, transaction and timeout used by the next execution.
// A non-nil tx takes precedence over conn.
func (c *Command) Bind(conn Querier, tx Tx, timeout time.Duration) {
	c.conn = conn
	c.tx = tx
	c.timeout = timeout
}

// Connection returns the bound connection.
func (c *Command) Connection() Querier { return c.conn }

// Transaction returns the bound transaction, or nil.
func (c *Command) Transaction() Tx { return c.tx }

// Timeout returns the bound command timeout. Zero means none.
func (c *Command) Timeout() time.Duration { return c.timeout }

// NamedArgs returns the parameter values keyed by name.
func (c *Command) NamedArgs() pgx.NamedArgs {
	args := make(pgx.NamedArgs, len(c.Parameters))
	for _, p := range c.Parameters {
		args[p.Name] = p.Value
	}
	return args
}

func (c *Command) arguments() []any {
	if len(c.Parameters) == 0 {
		return nil
	}
	return []any{c.NamedArgs()}
}

func (c *Command) querier() (Querier, error) {
	if c.tx != nil {
		return c.tx, nil
	}
	if c.conn != nil {
		return c.conn, nil
	}
	return nil, ErrCommandNotBound
}

func (c *Command) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return ctx, func() {}
}

// Exec runs the command without returning rows. A composite command is sent
// as one pipelined batch and the last statement's tag is returned.
func (c *Command) Exec(ctx context.Context) (pgconn.CommandTag, error) {
	if len(c.Statements) > 1 {
		return c.execComposite(ctx)
	}

	q, err := c.querier()
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return q.Exec(ctx, c.Text, c.arguments()...)
}

func (c *Command) execComposite(ctx context.Context) (pgconn.CommandTag, error) {
	results, err := c.SendBatch(ctx)
	if err != nil {
		return pgconn.CommandTag{}, err
	}

	var tag pgconn.CommandTag
	for range c.Statements {
		tag, err = results.Exec()
		if err != nil {
			results.Close()
			return tag, err
		}
	}
	return tag, results.Close()
}

// Query runs the command and returns its rows. Closing the rows releases the timeout.
func (c *Command) Query(ctx context.Context) (pgx.Rows, error) {
	q, err := c.querier()
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	rows, err := q.Query(ctx, c.Text, c.arguments()...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &timeoutRows{Rows: rows, cancel: cancel}, nil
}

// QueryRow runs the command expecting at most one row.
func (c *Command) QueryRow(ctx context.Context) pgx.Row {
	q, err := c.querier()
	if err != nil {
		return errRow{err: err}
	}

	ctx, cancel := c.withTimeout(ctx)
	return &timeoutRow{Row: q.QueryRow(ctx, c.Text, c.arguments()...), cancel: cancel}
}

// SendBatch queues every statement with the command's parameters and sends
// them in one round trip. The caller must Close the results.
func (c *Command) SendBatch(ctx context.Context) (pgx.BatchResults, error) {
	q, err := c.querier()
	if err != nil {
		return nil, err
	}

	statements := c.Statements
	if len(statements) == 0 {
		statements = []string{c.Text}
	}

	batch := &pgx.Batch{}
	args := c.arguments()
	for _, sql := range statements {
		batch.Queue(sql, args...)
	}

	ctx, cancel := c.withTimeout(ctx)
	return &timeoutBatchResults{BatchResults: q.SendBatch(ctx, batch), cancel: cancel}, nil
}

// String renders the text and parameters for diagnostics.
func (c *Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Text)
	for _, p := range c.Parameters {
		fmt.Fprintf(&sb, "\n  %s: %s", p.Name, formatValue(p.Value))
	}
	return sb.String()
}

func formatValue(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > MaxLoggedParameterLength {
		return s[:MaxLoggedParameterLength] + "..."
	}
	return s
}

type timeoutRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *timeoutRows) Close() {
	r.Rows.Close()
	r.cancel()
}

type timeoutRow struct {
	pgx.Row
	cancel context.CancelFunc
}

func (r *timeoutRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.Row.Scan(dest...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }

type timeoutBatchResults struct {
	pgx.BatchResults
	cancel context.CancelFunc
}

func (r *timeoutBatchResults) Close() error {
	defer r.cancel()
	return r.BatchResults.Close()
}

// ParameterAllocator hands out uniquely named parameters.
type ParameterAllocator interface {
	AddParameter(value any, dbType DbType) *Parameter
}

// CommandBuilder accumulates SQL fragments for a command. Each finished
// fragment becomes one statement of the command.
type CommandBuilder struct {
	cmd        *Command
	alloc      ParameterAllocator
	sb         strings.Builder
	statements []string
}

// NewCommandBuilder builds into cmd. A nil alloc names parameters arg0, arg1, ...
func NewCommandBuilder(cmd *Command, alloc ParameterAllocator) *CommandBuilder {
	return &CommandBuilder{cmd: cmd, alloc: alloc}
}

// Append writes raw SQL to the current statement.
func (b *CommandBuilder) Append(sql string) {
	b.sb.WriteString(sql)
}

// Appendf writes formatted SQL to the current statement.
func (b *CommandBuilder) Appendf(format string, args ...any) {
	fmt.Fprintf(&b.sb, format, args...)
}

// AddParameter allocates a parameter without writing it to the SQL.
func (b *CommandBuilder) AddParameter(value any, dbType DbType) *Parameter {
	if b.alloc != nil {
		return b.alloc.AddParameter(value, dbType)
	}
	return b.cmd.AddTypedParameter(value, dbType)
}

// AppendParameter allocates a parameter and writes its placeholder.
func (b *CommandBuilder) AppendParameter(value any, dbType DbType) *Parameter {
	p := b.AddParameter(value, dbType)
	b.sb.WriteString(p.Placeholder())
	return p
}

// EndStatement closes the current statement. Empty statements are dropped.
func (b *CommandBuilder) EndStatement() {
	sql := strings.TrimSpace(b.sb.String())
	b.sb.Reset()
	if sql != "" {
		b.statements = append(b.statements, sql)
	}
}

// StatementCount is the number of finished statements.
func (b *CommandBuilder) StatementCount() int {
	return len(b.statements)
}

// Command finishes the last statement and returns the built command.
func (b *CommandBuilder) Command() *Command {
	b.EndStatement()
	b.cmd.Statements = append([]string(nil), b.statements...)
	b.cmd.Text = strings.Join(b.statements, ";\n")
	return b.cmd
}
