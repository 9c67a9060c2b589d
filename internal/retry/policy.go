package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/apereiratl/marten/pkg/marten"
)

// Filter decides whether a failed attempt is worth repeating.
type Filter func(err error) bool

// TransientErrors accepts errors the PostgreSQL classifier considers temporary.
var TransientErrors Filter = NewPostgreSQLErrorClassifier().IsTransient

// Policy repeats a failed operation immediately, up to a fixed number of attempts.
//
// Thread Safety:
// A Policy is immutable and safe for concurrent use. WithOnRetry() returns a
// NEW instance; the original Policy remains unchanged.
type Policy struct {
	maxAttempts int
	filter      Filter
	onRetry     func(attempt int, err error)
}

// Never returns the policy that runs every operation exactly once.
func Never() *Policy {
	return &Policy{maxAttempts: 1}
}

// Once allows one retry (two attempts in total).
func Once(filter Filter) *Policy {
	return NTimes(1, filter)
}

// Twice allows two retries (three attempts in total).
func Twice(filter Filter) *Policy {
	return NTimes(2, filter)
}

// NTimes allows n retries (n+1 attempts in total). A nil filter retries any error.
// Panics if n is negative.
func NTimes(n int, filter Filter) *Policy {
	if n < 0 {
		panic(fmt.Sprintf("retry count cannot be negative: %d", n))
	}
	return &Policy{maxAttempts: n + 1, filter: filter}
}

// MaxAttempts is the total number of times an operation may run.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// WithOnRetry returns a new Policy that calls callback before each retry.
// attempt is the 1-based number of the attempt that just failed.
//
// Example:
//
//	policy := retry.Twice(retry.TransientErrors).WithOnRetry(func(attempt int, err error) {
//	    logger.Verbose("attempt %d failed, retrying: %v", attempt, err)
//	})
func (p *Policy) WithOnRetry(callback func(attempt int, err error)) *Policy {
	clone := *p
	clone.onRetry = callback
	return &clone
}

// Execute runs op until it succeeds or the policy gives up.
// When the filter rejects an error or attempts run out, that error is returned
// unchanged. A cancelled ctx stops retrying and its error is returned.
func (p *Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		if attempt >= p.maxAttempts || !p.accepts(ctx, err) {
			return err
		}

		if p.onRetry != nil {
			p.onRetry(attempt, err)
		}
	}
}

func (p *Policy) accepts(ctx context.Context, err error) bool {
	// A failure caused by the caller's own cancellation is final.
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return false
	}
	return p.filter == nil || p.filter(err)
}

// Value runs op through policy and returns the value of the successful attempt.
func Value[T any](ctx context.Context, policy marten.RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := policy.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

var _ marten.RetryPolicy = (*Policy)(nil)
