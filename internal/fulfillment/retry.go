package fulfillment

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// RetryPolicy bounds how often a fulfillment attempt is repeated after a
// retryable carrier failure.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy makes three attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempts are used up or ctx ends. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	limit := p.attempts()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op(ctx)
		if err != nil && !shipper.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(limit-1)), ctx))

	return attempts, err
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}
