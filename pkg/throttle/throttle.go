// Package throttle paces calls to an external dependency with a token bucket
// and retries failed calls with exponential backoff.
package throttle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// Policy combines a token-bucket limiter with a bounded retry schedule.
// A nil *Policy runs operations once with no pacing.
type Policy struct {
	limiter  *rate.Limiter
	maxTries uint
	initial  time.Duration
	max      time.Duration
	timeout  time.Duration
}

// New creates a Policy from a finalized Config.
// A zero RequestsPerSecond disables pacing.
func New(cfg *Config) *Policy {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Policy{
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		maxTries: uint(cfg.MaxRetries),
		initial:  cfg.InitialIntervalDuration(),
		max:      cfg.MaxIntervalDuration(),
		timeout:  cfg.TimeoutDuration(),
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// RetryAfter marks err as retryable after the given delay,
// typically taken from a Retry-After response header.
func RetryAfter(err error, after time.Duration) error {
	seconds := int(after.Round(time.Second) / time.Second)
	if seconds < 1 {
		return err
	}
	return &retryAfterError{err: err, after: backoff.RetryAfter(seconds)}
}

type retryAfterError struct {
	err   error
	after error
}

func (e *retryAfterError) Error() string { return e.err.Error() }

func (e *retryAfterError) Unwrap() []error { return []error{e.err, e.after} }

// Do runs op under the policy. Each attempt waits for a limiter token and
// runs with the policy timeout. Errors wrapped with Permanent stop retries
// and are returned unwrapped.
func Do[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	if p == nil {
		return op(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.MaxInterval = p.max

	return backoff.Retry(ctx, func() (T, error) {
		var zero T

		if err := p.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(err)
		}

		callCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		return op(callCtx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(p.maxTries))
}
