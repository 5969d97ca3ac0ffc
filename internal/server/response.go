package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deepreview/socratic/internal/apierr"
	"github.com/deepreview/socratic/internal/auth"
	"github.com/deepreview/socratic/internal/llm"
	"github.com/deepreview/socratic/internal/session"
	"github.com/deepreview/socratic/internal/store"
)

const errorCodeKey = "errorCode"

type APIError struct {
	Message           string `json:"message"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds *int   `json:"retryAfterSeconds,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// classify maps a domain error to its HTTP status and code.
func classify(err error) *apierr.Error {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve *session.ValidationError
	if errors.As(err, &ve) {
		return apierr.New(http.StatusBadRequest, "INVALID_REQUEST", err)
	}
	if rl, ok := llm.AsRateLimit(err); ok {
		return &apierr.Error{Status: http.StatusTooManyRequests, Code: "RATE_LIMIT", Err: err, RetryAfter: rl.RetryAfter}
	}
	if llm.IsTimeout(err) {
		return apierr.New(http.StatusGatewayTimeout, "TIMEOUT", err)
	}

	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return apierr.New(http.StatusUnauthorized, "UNAUTHORIZED", err)
	case errors.Is(err, session.ErrArticleNotFound):
		return apierr.New(http.StatusNotFound, "ARTICLE_NOT_FOUND", err)
	case errors.Is(err, session.ErrSessionNotFound):
		return apierr.New(http.StatusNotFound, "SESSION_NOT_FOUND", err)
	case errors.Is(err, store.ErrNotFound):
		return apierr.New(http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, session.ErrSessionCompleted):
		return apierr.New(http.StatusConflict, "SESSION_COMPLETED", err)
	case errors.Is(err, session.ErrOutOfOrder):
		return apierr.New(http.StatusConflict, "OUT_OF_ORDER", err)
	case errors.Is(err, session.ErrTurnInProgress):
		return apierr.New(http.StatusConflict, "TURN_IN_PROGRESS", err)
	case errors.Is(err, store.ErrStaleSession):
		return apierr.New(http.StatusConflict, "CONFLICT", err)
	}
	return apierr.New(http.StatusInternalServerError, "INTERNAL_ERROR", err)
}

func respondError(c *gin.Context, err error) {
	ae := classify(err)
	body := APIError{Message: "unknown error", Code: ae.Code}
	if ae.Err != nil {
		body.Message = ae.Err.Error()
	}
	if ae.Status == http.StatusTooManyRequests {
		secs := retryAfterSeconds(ae)
		body.RetryAfterSeconds = &secs
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	c.Set(errorCodeKey, ae.Code)
	c.JSON(ae.Status, ErrorEnvelope{Error: body})
}

func retryAfterSeconds(ae *apierr.Error) int {
	secs := int(math.Ceil(ae.RetryAfter.Seconds()))
	if secs < 1 {
		secs = int(llm.DefaultRetryPolicy().DefaultRetryAfter.Seconds())
	}
	return secs
}
