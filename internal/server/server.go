// Package server provides the HomeWatt HTTP server: REST API, health
// probes, Prometheus metrics, and the middleware stack in front of them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/homewatt/internal/version"
)

// ReadinessChecker reports whether the server can serve traffic. Nil
// error means ready.
type ReadinessChecker func(ctx context.Context) error

// RouteRegistrar lets other packages mount routes on the shared mux
// without the server importing them (consumer-side interface).
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the HomeWatt HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
	startedAt  time.Time
}

// New creates a Server. The REST API and the websocket handler are passed
// in as registrars and mount themselves on the shared mux.
func New(cfg Config, logger *zap.Logger, ready ReadinessChecker, routes ...RouteRegistrar) *Server {
	s := &Server{
		logger:    logger,
		mux:       http.NewServeMux(),
		ready:     ready,
		startedAt: time.Now(),
	}

	// Unversioned operational endpoints, then the versioned API.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	for _, r := range routes {
		r.RegisterRoutes(s.mux)
	}

	// Probes and scrapes skip both the request log and the limiter.
	quiet := []string{"/healthz", "/readyz", "/metrics"}

	s.httpServer = &http.Server{
		Addr: cfg.Addr(),
		Handler: Chain(s.mux,
			RecoveryMiddleware(logger),
			RequestIDMiddleware,
			LoggingMiddleware(logger, quiet),
			SecurityHeadersMiddleware,
			VersionHeaderMiddleware,
			RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, quiet),
		),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Uptime  string            `json:"uptime"`
	Version map[string]string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "homewatt",
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Version: version.Map(),
	})
}
