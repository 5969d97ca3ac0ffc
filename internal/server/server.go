// Package server exposes the assessment engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deepreview/socratic/internal/auth"
	"github.com/deepreview/socratic/internal/logger"
)

var errInvalidLimit = errors.New("limit must be an integer between 1 and 100")

type Config struct {
	Port        int
	Mode        string
	CORSOrigins []string
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config, h *Handler, verifier *auth.Verifier, db Pinger, log *logger.Logger) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), Metrics())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1", RequireAuth(verifier))
	{
		api.POST("/socratic/turn", h.Turn)

		api.POST("/articles/:articleId/sessions", h.OpenSession)
		api.GET("/articles/:articleId/sessions/active", h.ActiveSession)
		api.GET("/articles/:articleId/sessions/completed", h.CompletedSessions)
		api.GET("/sessions/:sessionId", h.GetSession)

		api.GET("/progress", h.Progress)
		api.GET("/progress/completions", h.Completions)
	}
	return r
}

// Server is the HTTP listener. WriteTimeout leaves room for a turn that
// waits out a rate limit.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

func New(cfg Config, handler http.Handler, turnTimeout time.Duration, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      turnTimeout + 30*time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: log.With("component", "http"),
	}
}

// Start binds the port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.log.Info("HTTP server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
