package logging

import (
	"github.com/apereiratl/marten/pkg/marten"
)

// CommandLogger renders session events through a marten.Logger: successful
// commands at verbose level, failures at error level, saved changes at info.
type CommandLogger struct {
	logger marten.Logger
}

// NewCommandLogger creates a CommandLogger. A nil logger discards everything.
func NewCommandLogger(logger marten.Logger) *CommandLogger {
	if logger == nil {
		logger = NewNullLogger()
	}
	return &CommandLogger{logger: logger}
}

// LogSuccess logs the command text and parameters.
func (l *CommandLogger) LogSuccess(cmd *marten.Command) {
	l.logger.Verbose("%s", cmd)
}

// LogFailure logs the error and the command that caused it.
func (l *CommandLogger) LogFailure(cmd *marten.Command, err error) {
	l.logger.Error("command failed: %v\n%s", err, cmd)
}

// RecordSavedChanges logs a summary of the unit of work.
func (l *CommandLogger) RecordSavedChanges(conn marten.ManagedConnection, changes marten.ChangeSet) {
	requests := 0
	if conn != nil {
		requests = conn.RequestCount()
	}
	l.logger.Info("saved changes: %d inserted, %d updated, %d deleted, %d operations, %d requests",
		len(changes.Inserted), len(changes.Updated), len(changes.Deleted), len(changes.Operations), requests)
}

type multiLogger []marten.SessionLogger

// Multi returns a session logger that forwards every event to each logger
// in order. Nil loggers are skipped.
func Multi(loggers ...marten.SessionLogger) marten.SessionLogger {
	var m multiLogger
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	if len(m) == 0 {
		return NullSessionLogger{}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multiLogger) LogSuccess(cmd *marten.Command) {
	for _, l := range m {
		l.LogSuccess(cmd)
	}
}

func (m multiLogger) LogFailure(cmd *marten.Command, err error) {
	for _, l := range m {
		l.LogFailure(cmd, err)
	}
}

func (m multiLogger) RecordSavedChanges(conn marten.ManagedConnection, changes marten.ChangeSet) {
	for _, l := range m {
		l.RecordSavedChanges(conn, changes)
	}
}

var _ marten.SessionLogger = (*CommandLogger)(nil)
