// Package http serves the inbound API, the live log stream and the
// operational endpoints.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AlertStore accepts alerts submitted through the API.
type AlertStore interface {
	Insert(ctx context.Context, alert domain.Alert) error
	Ping(ctx context.Context) error
}

// ReadinessChecker reports whether the ingestion side has come up.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// LogSource hands out subscriptions to structured log lines.
type LogSource interface {
	Subscribe() (<-chan []byte, func())
}

// Server exposes the alert API, log streams, health, readiness and metrics.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	closeAll   context.CancelFunc
	store      AlertStore
	ready      ReadinessChecker
	logs       LogSource
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes. ready may be nil,
// in which case readiness depends on the store alone.
func NewServer(addr string, corsOrigins []string, store AlertStore, ready ReadinessChecker, logs LogSource, logger *slog.Logger) *Server {
	engine := gin.New()
	baseCtx, closeAll := context.WithCancel(context.Background())

	// No WriteTimeout: log streams stay open until the client leaves or
	// Shutdown cancels the base context.
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			IdleTimeout:       60 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		engine:   engine,
		closeAll: closeAll,
		store:    store,
		ready:    ready,
		logs:     logs,
		logger:   logger,
	}

	engine.Use(requestID(), requestLogger(logger), recovery(logger), corsMiddleware(corsOrigins))

	engine.GET("/", s.handleRoot)
	engine.POST("/alerts", s.handleCreateAlert)
	engine.GET("/stream", s.handleStream)
	engine.GET("/stream-logs", s.handleStream)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/readyz", s.handleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown ends open log streams, then drains connections within the given
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Hailwatch API is live!"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.checkReady(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) checkReady(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	if s.ready != nil {
		return s.ready.CheckReadiness(ctx)
	}
	return nil
}
