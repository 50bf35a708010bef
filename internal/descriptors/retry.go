package descriptors

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds automatic retries. MaxRetries counts retries after the
// first attempt; every error is retried unless wrapped with backoff.Permanent.
type RetryPolicy struct {
	MaxRetries uint
	Delay      time.Duration
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// AttachmentRetryPolicy is the policy for remote attachment downloads:
// one retry on any error.
func AttachmentRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, Delay: 500 * time.Millisecond}
}

// Retry runs op under policy.
func Retry[T any](ctx context.Context, policy RetryPolicy, name string, op func() (T, error)) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		value, err := op()
		if err != nil && attempt <= int(policy.MaxRetries) {
			log.Warn().Err(err).Str("operation", name).Int("attempt", attempt).Msg("retrying")
		}
		return value, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(policy.Delay)),
		backoff.WithMaxTries(policy.MaxRetries+1),
	)
}
