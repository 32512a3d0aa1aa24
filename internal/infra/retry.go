package infra

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/luckygrid/platform/internal/domain"
)

// RetryPolicy bounds retries of transient store failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
}

// NoRetry runs the operation once.
func NoRetry() RetryPolicy { return RetryPolicy{Attempts: 1} }

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// policy is exhausted. Exhaustion is reported as domain.ErrStoreUnavailable.
// Only use it for reads or writes that are safe to repeat.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.Attempts, 1)
	var zero T
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return zero, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, domain.ErrStoreUnavailable(ctx.Err())
		case <-time.After(p.backoff(i)):
		}
	}
	return zero, domain.ErrStoreUnavailable(lastErr)
}

// backoff returns base*2^i with up to 50% jitter, capped at MaxDelay.
func (p RetryPolicy) backoff(i int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << i
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d/2 + jitter
}
