package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marten",
		Short: "Run SQL through a resilient PostgreSQL session",
		Long: `marten runs SQL commands and stored procedure calls through a managed
session: connections come from a pool, transient failures are retried, and
transactions follow the selected session mode.

Session modes:
  autocommit     every command runs on its own (default)
  transactional  commands run in one transaction, committed at the end
  readonly       like transactional, with SET TRANSACTION READ ONLY

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  13 - SQL command failed
  14 - Server lacks a feature the command needs`,
		SilenceUsage: true,
	}

	// -h is taken by --host
	cmd.PersistentFlags().Bool("help", false, "Help for marten")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")

	cmd.AddCommand(newExecCmd(), newSprocCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command
func Execute() error {
	return newRootCmd().Execute()
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
