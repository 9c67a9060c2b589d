package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/apereiratl/marten/internal/batch"
	"github.com/apereiratl/marten/internal/params"
	"github.com/apereiratl/marten/pkg/marten"
)

type sprocFlagValues struct {
	sessionFlags
	params      []string
	paramsFiles []string
}

func newSprocCmd() *cobra.Command {
	f := &sprocFlagValues{}
	cmd := &cobra.Command{
		Use:   "sproc <schema.function>",
		Short: "Call a stored procedure with named arguments",
		Long: `Sproc calls a function as one unit of work and prints the value it returns.

Arguments are passed by name, in the order given:
  select schema.function(name := @p0, other := @p1)

A name may carry a PostgreSQL type (name:type=value); the value is converted
before it is sent. jsonb values are sent as JSON text.

Examples:
  # Upsert a document
  marten sproc app.mt_upsert_order \
    --param doc:jsonb='{"total":3}' \
    --param docid:uuid=6c1f0f34-5d1c-4a32-9d1e-1c6c07a3b8d2

  # Arguments from a file, with a command-line override
  marten sproc app.recalculate --params-file args.env --param region=eu`,
		Args: RequireFunctionName,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSproc(cmd, args, f)
		},
	}

	addSessionFlags(cmd, &f.sessionFlags)
	cmd.Flags().StringArrayVar(&f.params, "param", nil,
		"Named argument as name=value or name:type=value (can be specified multiple times)\n"+
			"Example: --param total:integer=3 --param note=rush")
	cmd.Flags().StringArrayVar(&f.paramsFiles, "params-file", nil,
		"Load text arguments from .env files (can be specified multiple times)\n"+
			"Later files override earlier ones, --param overrides all")
	return cmd
}

// loadSprocArguments merges params files and --param flags.
func loadSprocArguments(files, flags []string) ([]params.Pair, error) {
	var sets [][]params.Pair
	for _, path := range files {
		pairs, err := params.LoadFile(path)
		if err != nil {
			return nil, err
		}
		sets = append(sets, pairs)
	}

	cliPairs, err := params.ParseKeyValuePairs(flags)
	if err != nil {
		return nil, err
	}
	return params.Merge(append(sets, cliPairs)...), nil
}

// buildSprocBatch renders one call of function with pairs as its arguments.
// result receives the first column of the first row.
func buildSprocBatch(function marten.DbObjectName, pairs []params.Pair, result *any) (*batch.Command, error) {
	b := batch.New()
	readResult := marten.CallbackFunc(func(ctx context.Context, results pgx.BatchResults) error {
		rows, err := results.Query()
		if err != nil {
			return err
		}
		defer rows.Close()

		*result = nil
		if rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return err
			}
			if len(values) > 0 {
				*result = values[0]
			}
		}
		return rows.Err()
	})

	call, err := b.Sproc(function, readResult, nil)
	if err != nil {
		return nil, err
	}

	for _, p := range pairs {
		if p.Type == marten.DbTypeJSONB {
			if _, err := p.Convert(); err != nil {
				return nil, err
			}
			call.JSONBody(p.Name, p.Value)
			continue
		}

		value, err := p.Convert()
		if err != nil {
			return nil, err
		}
		call.ParamTyped(p.Name, value, p.Type)
	}

	if err := call.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func runSproc(cmd *cobra.Command, args []string, f *sprocFlagValues) error {
	ctx, cancel := commandContext(f.timeout)
	defer cancel()

	pairs, err := loadSprocArguments(f.paramsFiles, f.params)
	if err != nil {
		return err
	}

	var result any
	b, err := buildSprocBatch(marten.NewDbObjectName(args[0]), pairs, &result)
	if err != nil {
		return err
	}

	run, err := openSession(ctx, cmd, &f.sessionFlags)
	if err != nil {
		return err
	}

	err = run.session.SaveChanges(ctx, b, marten.ChangeSet{})
	if closeErr := run.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), formatValue(result))
	return err
}
