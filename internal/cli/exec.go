package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/apereiratl/marten/pkg/marten"
)

type execFlagValues struct {
	sessionFlags
	args []string
}

func newExecCmd() *cobra.Command {
	f := &execFlagValues{}
	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run one SQL command through a managed session",
		Long: `Exec runs a single SQL command through a managed session and prints the
rows it returns, or its command tag when it returns none.

Positional values passed with --arg are bound as @arg0, @arg1, ... in order.

The command is retried on transient failures (see --retries). A command
that fails inside a transaction is rolled back.

Examples:
  # Query with an argument
  marten exec "select id, data from app.mt_doc_order where id = @arg0::uuid" --arg 6c1f...

  # Read-only transaction with two retries
  marten exec "select count(*) from app.mt_doc_order" --mode readonly --retries 2

  # Write inside a serializable transaction
  marten exec "update app.counters set n = n + 1" --mode transactional --isolation serializable`,
		Args: RequireSQL,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, f)
		},
	}

	addSessionFlags(cmd, &f.sessionFlags)
	cmd.Flags().StringArrayVar(&f.args, "arg", nil,
		"Positional argument bound as @arg0, @arg1, ... (can be specified multiple times)")
	return cmd
}

func runExec(cmd *cobra.Command, args []string, f *execFlagValues) error {
	ctx, cancel := commandContext(f.timeout)
	defer cancel()

	run, err := openSession(ctx, cmd, &f.sessionFlags)
	if err != nil {
		return err
	}

	command := marten.NewCommand(args[0])
	for _, a := range f.args {
		command.AddParameter(a)
	}

	var result *resultSet
	err = inUnitOfWork(ctx, run.session, func(ctx context.Context) error {
		var err error
		result, err = marten.ExecuteValue(ctx, run.session, command, queryAll)
		return err
	})
	if closeErr := run.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	return result.Print(cmd.OutOrStdout())
}

// resultSet is a fully read query result.
type resultSet struct {
	columns []string
	rows    [][]any
	tag     string
}

// queryAll reads every row so a retried attempt never leaves partial output.
func queryAll(ctx context.Context, cmd *marten.Command) (*resultSet, error) {
	rows, err := cmd.Query(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &resultSet{}
	for _, fd := range rows.FieldDescriptions() {
		result.columns = append(result.columns, fd.Name)
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result.rows = append(result.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.tag = rows.CommandTag().String()
	return result, nil
}

// Print writes the rows as an aligned table followed by the row count, or
// only the command tag when there are no columns.
func (r *resultSet) Print(out io.Writer) error {
	if len(r.columns) == 0 {
		_, err := fmt.Fprintln(out, r.tag)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.columns, "\t"))
	for _, row := range r.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	noun := "rows"
	if len(r.rows) == 1 {
		noun = "row"
	}
	_, err := fmt.Fprintf(out, "(%d %s)\n", len(r.rows), noun)
	return err
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return fmt.Sprintf("\\x%x", val)
	case [16]byte:
		return uuid.UUID(val).String()
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
