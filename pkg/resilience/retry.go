package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool
	OnRetry     func(attempt int, err error)
	Sleep       func(time.Duration)
}

func NewRetryPolicy(maxAttempts int, base, max time.Duration) RetryPolicy {
	p := RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: max}
	return p.withDefaults()
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 2 * time.Second
	}
	if p.IsRetryable == nil {
		p.IsRetryable = IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = time.Sleep
	}
	return p
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Delays grow exponentially with full jitter on top.
func Retry[T any](ctx context.Context, p RetryPolicy, service string, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T
	var lastErr error
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < p.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !p.IsRetryable(err) || i == p.MaxAttempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(i+1, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
			p.Sleep(backoffDelay(p.BaseDelay, p.MaxDelay, i, r))
		}
	}
	return zero, fmt.Errorf("%s: %w", service, lastErr)
}

func backoffDelay(base, max time.Duration, attempt int, r *rand.Rand) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max {
		d = max
	}
	return d + time.Duration(float64(base)*r.Float64())
}
