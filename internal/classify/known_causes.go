package classify

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/apereiratl/marten/pkg/marten"
)

// KnownCause is a backend error signature that means the server lacks a
// feature, not that the command is wrong.
type KnownCause struct {
	Reason      marten.NotSupportedReason
	Description string
	Matches     func(err error) bool
}

// KnownCauses is checked in order; the first match wins.
var KnownCauses = []KnownCause{
	{
		Reason:      marten.ReasonFullTextSearchNeedsAtLeastPostgresVersion10,
		Description: "Full Text Search needs at least Postgres version 10.",
		Matches:     undefinedFunction("to_tsvector(unknown, jsonb)", "to_tsvector(regconfig, jsonb)"),
	},
	{
		Reason:      marten.ReasonWebStyleSearchNeedsAtLeastPostgresVersion11,
		Description: "Full Text Search needs at least Postgres version 11.",
		Matches:     undefinedFunction("websearch_to_tsquery"),
	},
	{
		Reason:      marten.ReasonNgramSearchNotInstalled,
		Description: "NGram search functions are missing. Apply the schema objects for ngram search first.",
		Matches:     undefinedFunction("mt_grams_vector", "mt_grams_query", "mt_grams_array"),
	},
}

// undefinedFunction matches 42883 errors naming any of the given functions.
func undefinedFunction(signatures ...string) func(err error) bool {
	return func(err error) bool {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UndefinedFunction {
			return false
		}
		for _, sig := range signatures {
			if strings.Contains(pgErr.Message, sig) {
				return true
			}
		}
		return false
	}
}

// Lookup returns the first known cause matching err.
func Lookup(err error) (KnownCause, bool) {
	for _, cause := range KnownCauses {
		if cause.Matches(err) {
			return cause, true
		}
	}
	return KnownCause{}, false
}
