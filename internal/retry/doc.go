// Package retry provides the retry policies a session runs its work through.
//
// Retries are immediate: there is no delay or backoff between attempts, only
// a bound on how many attempts are made and a filter deciding which errors
// are worth another attempt.
//
// # Example Usage
//
//	policy := retry.Twice(retry.TransientErrors)
//
//	err := policy.Execute(ctx, func(ctx context.Context) error {
//	    _, err := cmd.Exec(ctx)
//	    return err
//	})
//
// # Policies
//
// Never runs an operation exactly once and is the session default. Once,
// Twice and NTimes allow 1, 2 and n retries. A nil filter retries any error.
//
// # Error Classification
//
// PostgreSQLErrorClassifier recognizes transient PostgreSQL and network
// failures. TransientErrors is its IsTransient method as a Filter.
//
// # Cancellation
//
// The context is checked before every retry. Errors caused by cancelling the
// caller's context are never retried.
package retry
