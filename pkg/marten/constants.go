package marten

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitCommandFailed   = 13 // SQL command failed
	ExitNotSupported    = 14 // Server lacks a feature the command relies on
)

const (
	// DefaultRetryCount is the number of additional attempts used when
	// retries are enabled without an explicit count.
	DefaultRetryCount = 2

	// DefaultPort is the standard PostgreSQL port.
	DefaultPort = 5432

	// DefaultManagementDB is the database used when none is specified.
	DefaultManagementDB = "postgres"

	// DefaultConnectTimeout bounds how long a single connection attempt may take.
	DefaultConnectTimeout = 30 * time.Second

	// ParameterPrefix is the prefix of batch parameter names (p0, p1, ...).
	ParameterPrefix = "p"

	// ArgumentPrefix is the prefix of parameters added directly to a command (arg0, arg1, ...).
	ArgumentPrefix = "arg"

	// MaxLoggedParameterLength truncates long parameter values in command logs.
	MaxLoggedParameterLength = 200
)
