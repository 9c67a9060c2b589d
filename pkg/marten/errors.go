package marten

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	err := session.Execute(ctx, cmd, nil)
//	if errors.Is(err, marten.ErrNotSupported) {
//	    // The server lacks a feature the command relies on
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a required argument was empty or nil.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrCommandFailed indicates a command failed at the backend.
	ErrCommandFailed = errors.New("command failed")

	// ErrNotSupported indicates the backend does not support a feature the command needs.
	ErrNotSupported = errors.New("not supported")

	// ErrRollbackFailed indicates a transaction rollback failed.
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrSessionClosed indicates the session was closed by its owner.
	ErrSessionClosed = errors.New("session closed")

	// ErrSessionFinished indicates the transaction state was committed or
	// rolled back and its connection released.
	ErrSessionFinished = errors.New("transaction state already finished")

	// ErrCommandNotBound indicates a command was executed before a connection was applied to it.
	ErrCommandNotBound = errors.New("command is not bound to a connection")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrTypeRegistrySealed indicates a type mapping was registered after sessions started.
	ErrTypeRegistrySealed = errors.New("type registry is sealed")
)

// CommandError is a backend failure re-expressed with the failing command's
// text and parameter values.
type CommandError struct {
	Text       string
	Parameters []Parameter
	Err        error
}

// NewCommandError snapshots cmd so later mutation of the command does not
// change the diagnostics.
func NewCommandError(cmd *Command, err error) *CommandError {
	ce := &CommandError{Err: err}
	if cmd != nil {
		ce.Text = cmd.Text
		ce.Parameters = make([]Parameter, 0, len(cmd.Parameters))
		for _, p := range cmd.Parameters {
			ce.Parameters = append(ce.Parameters, *p)
		}
	}
	return ce
}

func (e *CommandError) Error() string {
	var sb strings.Builder
	sb.WriteString("marten command failed!\n")
	sb.WriteString(e.Text)
	sb.WriteByte('\n')
	for _, p := range e.Parameters {
		fmt.Fprintf(&sb, "  %s: %v\n", p.Name, p.Value)
	}
	if e.Err != nil {
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *CommandError) Unwrap() error { return e.Err }

func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// NotSupportedReason identifies a known unsupported-feature signature.
type NotSupportedReason int

const (
	ReasonUnknown NotSupportedReason = iota
	ReasonFullTextSearchNeedsAtLeastPostgresVersion10
	ReasonWebStyleSearchNeedsAtLeastPostgresVersion11
	ReasonNgramSearchNotInstalled
)

func (r NotSupportedReason) String() string {
	switch r {
	case ReasonFullTextSearchNeedsAtLeastPostgresVersion10:
		return "FullTextSearchNeedsAtLeastPostgresVersion10"
	case ReasonWebStyleSearchNeedsAtLeastPostgresVersion11:
		return "WebStyleSearchNeedsAtLeastPostgresVersion11"
	case ReasonNgramSearchNotInstalled:
		return "NgramSearchNotInstalled"
	default:
		return "Unknown"
	}
}

// NotSupportedError is a CommandError whose cause matched a known
// "this server cannot do that" signature.
type NotSupportedError struct {
	CommandError
	Reason      NotSupportedReason
	Description string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s (%s)\n%s", e.Description, e.Reason, e.CommandError.Error())
}

// Unwrap exposes the embedded CommandError so errors.As finds both types.
func (e *NotSupportedError) Unwrap() error { return &e.CommandError }

func (e *NotSupportedError) Is(target error) bool { return target == ErrNotSupported }

// RollbackError wraps a failure raised while rolling back a transaction.
type RollbackError struct {
	Err error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("failed while trying to rollback the transaction: %v", e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

func (e *RollbackError) Is(target error) bool { return target == ErrRollbackFailed }

// usageErrorPatterns match the messages cobra produces for command-line misuse.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrNotSupported):
		return ExitNotSupported
	case errors.Is(err, ErrCommandFailed):
		return ExitCommandFailed
	case errors.Is(err, ErrInvalidArgument):
		return ExitUsageError
	}

	errStr := err.Error()
	for _, p := range usageErrorPatterns {
		if strings.HasPrefix(errStr, p) {
			return ExitUsageError
		}
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
