package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/deepreview/socratic/internal/apierr"
	"github.com/deepreview/socratic/internal/auth"
	"github.com/deepreview/socratic/internal/logger"
	"github.com/deepreview/socratic/internal/metrics"
)

const userIDKey = "userID"

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's user id on the context.
func RequireAuth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := v.Parse(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, apierr.New(http.StatusUnauthorized, "UNAUTHORIZED", err))
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if userID := currentUser(c); userID != "" {
			fields = append(fields, "user_id", userID)
		}
		if code := c.GetString(errorCodeKey); code != "" {
			fields = append(fields, "code", code)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// Metrics counts requests by route template, method and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		metrics.HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
