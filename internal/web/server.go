// Package web serves the chat HTTP API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/showroom/internal/agent"
	"github.com/haasonsaas/showroom/internal/observability"
)

// Config holds web server configuration.
type Config struct {
	// Host to bind (default: all interfaces)
	Host string
	// Port to listen on
	Port int
	// Responder handles chat turns
	Responder agent.Responder
	// MCPURL is reported by the health endpoint
	MCPURL string
	// Metrics for request accounting (optional)
	Metrics *observability.Metrics
	// Registry backing the /metrics endpoint (optional)
	Registry *prometheus.Registry
	// Logger for request logging
	Logger *slog.Logger
}

// Server is the chat API HTTP server.
type Server struct {
	config     *Config
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the server and wires its routes.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Responder == nil {
		return nil, fmt.Errorf("web: responder is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("web: invalid port %d", cfg.Port)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")

	s := &Server{config: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/health", s.handleHealth)
	if cfg.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           LoggingMiddleware(logger, cfg.Metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the routed handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
