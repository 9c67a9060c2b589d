package logging

import "github.com/apereiratl/marten/pkg/marten"

// NullLogger is a no-op logger that discards all log messages.
// Safe for concurrent use by multiple goroutines.
// Useful for testing and when logging is not desired.
type NullLogger struct{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

// Verbose is a no-op.
func (l *NullLogger) Verbose(format string, args ...interface{}) {}

// Info is a no-op.
func (l *NullLogger) Info(format string, args ...interface{}) {}

// Error is a no-op.
func (l *NullLogger) Error(format string, args ...interface{}) {}

// NullSessionLogger ignores every session event.
type NullSessionLogger struct{}

// LogSuccess is a no-op.
func (NullSessionLogger) LogSuccess(*marten.Command) {}

// LogFailure is a no-op.
func (NullSessionLogger) LogFailure(*marten.Command, error) {}

// RecordSavedChanges is a no-op.
func (NullSessionLogger) RecordSavedChanges(marten.ManagedConnection, marten.ChangeSet) {}

var (
	_ marten.Logger        = (*NullLogger)(nil)
	_ marten.SessionLogger = NullSessionLogger{}
)
