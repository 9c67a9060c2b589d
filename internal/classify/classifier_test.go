package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/pkg/marten"
)

func TestError_KnownCauses(t *testing.T) {
	tests := []struct {
		name    string
		message string
		reason  marten.NotSupportedReason
	}{
		{
			name:    "full text search on jsonb",
			message: "function to_tsvector(unknown, jsonb) does not exist",
			reason:  marten.ReasonFullTextSearchNeedsAtLeastPostgresVersion10,
		},
		{
			name:    "web style search",
			message: "function websearch_to_tsquery(unknown, unknown) does not exist",
			reason:  marten.ReasonWebStyleSearchNeedsAtLeastPostgresVersion11,
		},
		{
			name:    "ngram search",
			message: "function public.mt_grams_vector(text) does not exist",
			reason:  marten.ReasonNgramSearchNotInstalled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := marten.NewCommand("select data from mt_doc_target where ...")
			cause := &pgconn.PgError{Code: pgerrcode.UndefinedFunction, Message: tt.message}

			err := Error(cmd, cause)

			var notSupported *marten.NotSupportedError
			require.ErrorAs(t, err, &notSupported)
			assert.Equal(t, tt.reason, notSupported.Reason)
			assert.NotEmpty(t, notSupported.Description)
			assert.Equal(t, cmd.Text, notSupported.Text)
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestError_UnknownCauseIsCommandError(t *testing.T) {
	cmd := marten.NewCommand("insert into t values (@arg0)")
	cmd.AddParameter("x")
	cause := &pgconn.PgError{Code: pgerrcode.UniqueViolation, Message: "duplicate key value"}

	err := Error(cmd, cause)

	var notSupported *marten.NotSupportedError
	assert.False(t, errors.As(err, &notSupported))

	var ce *marten.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "insert into t values (@arg0)", ce.Text)
	require.Len(t, ce.Parameters, 1)
	assert.Equal(t, "x", ce.Parameters[0].Value)
	assert.Same(t, cause, ce.Err)
}

func TestError_SameCodeDifferentFunction(t *testing.T) {
	cause := &pgconn.PgError{Code: pgerrcode.UndefinedFunction, Message: "function my_custom_fn(integer) does not exist"}
	err := Error(marten.NewCommand("select my_custom_fn(1)"), cause)

	assert.False(t, errors.Is(err, marten.ErrNotSupported))
	assert.True(t, errors.Is(err, marten.ErrCommandFailed))
}

func TestLookup_FirstMatchWins(t *testing.T) {
	cause := &pgconn.PgError{
		Code:    pgerrcode.UndefinedFunction,
		Message: "function to_tsvector(unknown, jsonb) does not exist near websearch_to_tsquery",
	}
	known, ok := Lookup(cause)
	require.True(t, ok)
	assert.Equal(t, marten.ReasonFullTextSearchNeedsAtLeastPostgresVersion10, known.Reason)

	_, ok = Lookup(errors.New("function to_tsvector(unknown, jsonb) does not exist"))
	assert.False(t, ok, "only backend errors carry a code")
}

func TestIsDriverError(t *testing.T) {
	assert.True(t, IsDriverError(&pgconn.PgError{Code: pgerrcode.SyntaxError}))
	assert.True(t, IsDriverError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.SyntaxError})))
	assert.False(t, IsDriverError(nil))
	assert.False(t, IsDriverError(errors.New("callback failed")))
	assert.False(t, IsDriverError(context.Canceled))
	assert.False(t, IsDriverError(fmt.Errorf("query: %w", context.DeadlineExceeded)))
}
