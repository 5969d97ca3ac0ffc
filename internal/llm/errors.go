package llm

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrRateLimit indicates the provider throttled the request. RetryAfter is
// the provider's suggested wait, zero when it gave none.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// RetryAfterSeconds returns the suggested wait rounded up to whole seconds,
// at least 1.
func (e *ErrRateLimit) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ErrTimeout indicates the request deadline passed while waiting on the
// provider. Callers may retry the whole operation.
type ErrTimeout struct {
	Err error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("LLM request timed out: %v", e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the model returned unusable content.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable, or
// failed in a way that is not otherwise classified.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// AsRateLimit reports whether err is, or wraps, an *ErrRateLimit.
func AsRateLimit(err error) (*ErrRateLimit, bool) {
	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// IsTimeout reports whether err is, or wraps, an *ErrTimeout.
func IsTimeout(err error) bool {
	var te *ErrTimeout
	return errors.As(err, &te)
}
