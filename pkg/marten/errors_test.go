package marten_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apereiratl/marten/pkg/marten"
)

func TestExitCodeForError(t *testing.T) {
	cmd := marten.NewCommand("select 1")
	cause := &pgconn.PgError{Code: "42883", Message: "function foo() does not exist"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, marten.ExitSuccess},
		{"unknown flag", errors.New("unknown flag --foo"), marten.ExitUsageError},
		{"accepts args", errors.New("accepts 1 arg(s), received 0"), marten.ExitUsageError},
		{"required flag", errors.New("required flag \"connection\" not set"), marten.ExitUsageError},
		{"general error", errors.New("something went wrong"), marten.ExitGeneralError},
		{"invalid config", fmt.Errorf("timeout: %w", marten.ErrInvalidConfig), marten.ExitConfigError},
		{"unsupported auth", marten.ErrUnsupportedAuthMethod, marten.ExitConfigError},
		{"connection failed", marten.ErrConnectionFailed, marten.ExitConnectionError},
		{"connection refused text", errors.New("dial: connection refused"), marten.ExitConnectionError},
		{"command error", marten.NewCommandError(cmd, cause), marten.ExitCommandFailed},
		{"not supported", &marten.NotSupportedError{CommandError: *marten.NewCommandError(cmd, cause)}, marten.ExitNotSupported},
		{"invalid argument", marten.ErrInvalidArgument, marten.ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := marten.ExitCodeForError(tt.err); got != tt.want {
				t.Errorf("ExitCodeForError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestCommandError_CarriesCommandAndCause(t *testing.T) {
	cmd := marten.NewCommand("select * from mt_doc_user where id = @arg0")
	cmd.AddParameter(42)
	cause := &pgconn.PgError{Code: "42P01", Message: "relation \"mt_doc_user\" does not exist"}

	err := marten.NewCommandError(cmd, cause)
	cmd.Text = "changed afterwards"

	if err.Text != "select * from mt_doc_user where id = @arg0" {
		t.Errorf("Text = %q, want snapshot of original text", err.Text)
	}
	if len(err.Parameters) != 1 || err.Parameters[0].Value != 42 {
		t.Errorf("Parameters = %+v, want one parameter with value 42", err.Parameters)
	}
	if !strings.Contains(err.Error(), "arg0: 42") {
		t.Errorf("Error() = %q, want parameter listing", err.Error())
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42P01" {
		t.Errorf("errors.As did not reach the PgError cause")
	}
	if !errors.Is(err, marten.ErrCommandFailed) {
		t.Errorf("errors.Is(err, ErrCommandFailed) = false")
	}
}

func TestNotSupportedError_IsAlsoCommandError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&marten.NotSupportedError{
		CommandError: *marten.NewCommandError(marten.NewCommand("select 1"), cause),
		Reason:       marten.ReasonWebStyleSearchNeedsAtLeastPostgresVersion11,
		Description:  "web style search needs PostgreSQL 11",
	})

	var ce *marten.CommandError
	if !errors.As(err, &ce) {
		t.Fatal("errors.As(*CommandError) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through NotSupportedError")
	}
	if !errors.Is(err, marten.ErrNotSupported) || !errors.Is(err, marten.ErrCommandFailed) {
		t.Error("NotSupportedError should match both ErrNotSupported and ErrCommandFailed")
	}
	if !strings.Contains(err.Error(), "WebStyleSearchNeedsAtLeastPostgresVersion11") {
		t.Errorf("Error() = %q, want reason name", err.Error())
	}
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&marten.RollbackError{Err: cause})

	if !errors.Is(err, marten.ErrRollbackFailed) {
		t.Error("errors.Is(err, ErrRollbackFailed) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through RollbackError")
	}
	if errors.Is(err, marten.ErrCommandFailed) {
		t.Error("a rollback failure must not look like a command failure")
	}
}
