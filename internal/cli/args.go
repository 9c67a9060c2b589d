package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apereiratl/marten/pkg/marten"
)

// RequireSQL validates that exactly one SQL text argument is provided.
// Returns a helpful error message with usage and examples if missing or too many.
func RequireSQL(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <sql>

Usage: %s

Example:
  %s "select * from app.orders where id = @arg0" --arg 42: %w`, cmd.UseLine(), cmd.CommandPath(), marten.ErrInvalidArgument)
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d (quote the SQL text)", len(args))
	}
	return nil
}

// RequireFunctionName validates that exactly one function name is provided.
func RequireFunctionName(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <schema.function>

Usage: %s

Example:
  %s app.mt_upsert_order --param doc:jsonb='{"total":3}' --param docid:uuid=...: %w`, cmd.UseLine(), cmd.CommandPath(), marten.ErrInvalidArgument)
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	if name := marten.NewDbObjectName(args[0]); name.Schema == "" || name.Name == "" {
		return fmt.Errorf("invalid function name %q: %w", args[0], marten.ErrInvalidArgument)
	}
	return nil
}
