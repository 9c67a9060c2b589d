package marten

import "context"

// RetryPolicy runs a unit of work, repeating it on failures it considers
// worth another attempt. Policies never sleep between attempts.
//
// The blocking form of every call is Execute(context.Background(), op).
type RetryPolicy interface {
	// Execute runs op until it succeeds, the policy gives up, or ctx is done.
	// The last error from op is returned unchanged when the policy gives up.
	Execute(ctx context.Context, op func(ctx context.Context) error) error
}

// ErrorClassifier determines whether an error is transient (retryable) or fatal.
type ErrorClassifier interface {
	// IsTransient returns true if the error is temporary and the operation should be retried.
	IsTransient(err error) bool
}
