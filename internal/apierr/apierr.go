// Package apierr carries an HTTP status and a machine-readable code along
// with an error.
package apierr

import (
	"fmt"
	"time"
)

type Error struct {
	Status int
	Code   string
	Err    error

	// RetryAfter is set for rate-limit errors and rendered as the
	// Retry-After header and retryAfterSeconds field.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
