package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"compounder/internal/handlers"
	applog "compounder/internal/log"
	"compounder/internal/metrics"
)

// Config captures the runtime configuration for the HTTP server.
type Config struct {
	Addr              string
	AllowedOrigins    []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	CertificateLimit  int64
	Database          *gorm.DB
}

// Server wraps an http.Server together with the collectors it reports to.
type Server struct {
	config     Config
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// New builds a new Server using the provided configuration.
func New(cfg Config) (*Server, error) {
	applog.Debug(context.Background(), "initializing server",
		"addr", cfg.Addr,
		"origins", len(cfg.AllowedOrigins),
	)

	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	m := metrics.New()
	if err := handlers.Configure(handlers.Dependencies{
		Database:         cfg.Database,
		Metrics:          m,
		CertificateLimit: cfg.CertificateLimit,
	}); err != nil {
		return nil, fmt.Errorf("configure handlers: %w", err)
	}
	applog.Debug(context.Background(), "handler dependencies configured")

	return &Server{
		config:  cfg,
		metrics: m,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           newRouter(cfg.AllowedOrigins, m),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
	}, nil
}

// Start begins serving HTTP traffic using the underlying http.Server.
func (s *Server) Start() error {
	applog.Info(context.Background(), "server starting listener", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with the configured timeout.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	applog.Debug(ctx, "server initiating graceful shutdown")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured HTTP handler, enabling integration tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}
