package llm

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how rate-limited requests are retried. Only rate-limit
// errors are retried; every other failure is returned immediately.
type RetryPolicy struct {
	// MaxAttempts counts the first call. 2 means one retry.
	MaxAttempts int

	// DefaultRetryAfter is used when the provider gives no wait hint.
	DefaultRetryAfter time.Duration

	// MaxRetryAfter caps any wait, including provider hints. Zero disables
	// the cap.
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy retries a rate-limited call once after the provider's
// suggested delay, or 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		DefaultRetryAfter: 60 * time.Second,
		MaxRetryAfter:     2 * time.Minute,
	}
}

// Next decides whether the call that just failed with err on the given
// zero-based attempt should be retried, and after how long.
func (p RetryPolicy) Next(attempt int, err error) (time.Duration, bool) {
	if attempt+1 >= p.MaxAttempts {
		return 0, false
	}
	rl, ok := AsRateLimit(err)
	if !ok {
		return 0, false
	}
	return p.wait(rl), true
}

func (p RetryPolicy) wait(rl *ErrRateLimit) time.Duration {
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = p.DefaultRetryAfter
	}
	if p.MaxRetryAfter > 0 && wait > p.MaxRetryAfter {
		wait = p.MaxRetryAfter
	}
	return wait
}

// RetryProvider is a decorator applying a RetryPolicy to every call.
type RetryProvider struct {
	inner  Provider
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a Provider with the given retry policy.
func WithRetry(p Provider, policy RetryPolicy) *RetryProvider {
	return &RetryProvider{inner: p, policy: policy, sleep: sleepCtx}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); errors.Is(err, context.DeadlineExceeded) || errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, &ErrTimeout{Err: err}
		}

		wait, retry := r.policy.Next(attempt, err)
		if !retry {
			return nil, r.finalError(err)
		}

		// Sleeping past the deadline only turns a rate limit into a timeout.
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return nil, r.finalError(err)
		}

		if err := r.sleep(ctx, wait); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, &ErrTimeout{Err: err}
			}
			return nil, err
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// finalError makes sure a surfaced rate limit always carries a positive wait.
func (r *RetryProvider) finalError(err error) error {
	rl, ok := AsRateLimit(err)
	if !ok || rl.RetryAfter > 0 {
		return err
	}
	return &ErrRateLimit{RetryAfter: r.policy.wait(rl), Err: rl.Err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
