// Package server hosts the gin engine shared by the registry and contract
// APIs, with health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmphub-lab/dmphub/internal/metrics"
	"github.com/gin-gonic/gin"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Engine *gin.Engine
	Addr   string
	store  HealthChecker
}

// New builds the engine with /health and, when m is set, request metrics
// and /metrics. store may be nil for backends without a connection to check.
func New(addr string, store HealthChecker, m *metrics.Metrics, mode string) *Server {
	debug := mode == gin.DebugMode
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{Engine: gin.New(), Addr: addr, store: store}
	s.Engine.Use(gin.Recovery())
	if debug {
		s.Engine.Use(requestLogger())
	}
	if m != nil {
		s.Engine.Use(m.Middleware())
		s.Engine.GET("/metrics", m.Handler())
	}
	s.Engine.GET("/health", s.health)
	return s
}

// requestLogger logs each request through slog so debug output shares the
// process log format.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "storage": "unchecked"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Error("Health check failed: storage unreachable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "storage": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "storage": "connected"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced to shut down", "error", err)
		}
	}()

	slog.Info("Starting HTTP server", "address", s.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
