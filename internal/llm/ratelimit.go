package llm

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// retryHintPattern matches hints such as "Please retry in 37.5s" or
// "try again in 850ms" embedded in provider error messages.
var retryHintPattern = regexp.MustCompile(`(?i)(?:retry|try again) in\s+([\d.]+)\s*(ms|s)\b`)

// parseRetryHint extracts a suggested wait from an error message.
// Returns 0 when the message carries no hint.
func parseRetryHint(msg string) time.Duration {
	m := retryHintPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0
	}
	if strings.EqualFold(m[2], "ms") {
		return time.Duration(v * float64(time.Millisecond))
	}
	return time.Duration(v * float64(time.Second))
}

// parseRetryAfterHeader interprets an HTTP Retry-After value, either
// delta-seconds or an HTTP date.
func parseRetryAfterHeader(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// looksRateLimited is the message-pattern fallback for errors that reach an
// adapter without a status code.
func looksRateLimited(msg string) bool {
	m := strings.ToLower(msg)
	for _, needle := range []string{"429", "quota", "too many requests", "resource_exhausted", "rate limit"} {
		if strings.Contains(m, needle) {
			return true
		}
	}
	return false
}
