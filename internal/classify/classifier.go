// Package classify turns backend failures into marten's error taxonomy.
package classify

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apereiratl/marten/pkg/marten"
)

// Error wraps cause as a *marten.NotSupportedError when it matches a known
// cause, and as a *marten.CommandError otherwise.
func Error(cmd *marten.Command, cause error) error {
	ce := marten.NewCommandError(cmd, cause)
	if known, ok := Lookup(cause); ok {
		return &marten.NotSupportedError{
			CommandError: *ce,
			Reason:       known.Reason,
			Description:  known.Description,
		}
	}
	return ce
}

// IsDriverError reports whether err was raised by the PostgreSQL driver.
// Cancellation and errors from caller code are not driver errors.
func IsDriverError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	// pgconn's network and protocol errors report whether they are safe to retry.
	var retryable interface{ SafeToRetry() bool }
	return errors.As(err, &retryable)
}
