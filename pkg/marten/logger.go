package marten

// Logger provides a pluggable logging interface for marten operations.
// Implementations must be safe for concurrent use by multiple goroutines.
type Logger interface {
	// Verbose logs detailed diagnostic information.
	// Only logged when verbose mode is enabled.
	Verbose(format string, args ...interface{})

	// Info logs informational messages about normal operations.
	// Always logged regardless of verbose mode.
	Info(format string, args ...interface{})

	// Error logs error messages.
	// Always logged regardless of verbose mode.
	Error(format string, args ...interface{})
}

// SessionLogger observes the commands a session runs.
type SessionLogger interface {
	// LogSuccess is called once for each command that completed.
	LogSuccess(cmd *Command)

	// LogFailure is called once for each command that failed for good,
	// after retries gave up.
	LogFailure(cmd *Command, err error)

	// RecordSavedChanges is called once after a unit of work committed.
	RecordSavedChanges(conn ManagedConnection, changes ChangeSet)
}
