// Package server serves querysync over HTTP: WebSocket sync sessions, a
// stateless read/patch API, Prometheus metrics and a health check.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/metrics"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
	"github.com/vango-dev/querysync/pkg/wshost"
)

// Config configures a Server.
type Config struct {
	// Schema is the schema served. Required.
	Schema *snapshot.Schema

	// Options are applied to every engine, for sessions and API calls alike.
	Options []urlsync.Option

	// Addr is the listen address. Default: ":8080".
	Addr string

	// WSPath is the WebSocket endpoint. Default: "/ws".
	WSPath string

	// MetricsPath is the Prometheus endpoint. Empty disables it.
	MetricsPath string

	// AllowedOrigins lists cross-origin WebSocket clients; see wshost.AllowOrigins.
	AllowedOrigins []string

	// ReadTimeout closes silent WebSocket sessions. Default: 60 seconds.
	ReadTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10 seconds.
	ShutdownTimeout time.Duration

	// Registry receives the querysync metrics. Default: a new registry.
	Registry *prometheus.Registry

	// Logger is the server logger. Default: slog.Default().
	Logger *slog.Logger
}

// Server is the querysync HTTP server.
type Server struct {
	config     Config
	router     chi.Router
	ws         *wshost.Handler
	metrics    *metrics.Collector
	logger     *slog.Logger
	httpServer *http.Server
}

// New builds the router and its handlers.
func New(config Config) (*Server, error) {
	if config.Schema == nil {
		return nil, errors.New("Q022").WithDetail("server: schema is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  config,
		metrics: metrics.New(metrics.WithRegistry(config.Registry)),
		logger:  logger.With("component", "server"),
	}

	ws, err := wshost.NewHandler(wshost.Config{
		Schema:      config.Schema,
		Options:     config.Options,
		ReadTimeout: config.ReadTimeout,
		CheckOrigin: wshost.AllowOrigins(config.AllowedOrigins),
		Recorder:    s.metrics,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.ws = ws

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle(config.WSPath, ws)
	if config.MetricsPath != "" {
		r.Handle(config.MetricsPath, promhttp.HandlerFor(config.Registry, promhttp.HandlerOpts{}))
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/read", s.handleRead)
		r.Post("/patch", s.handlePatch)
	})
	s.router = r

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collector.
func (s *Server) Metrics() *metrics.Collector {
	return s.metrics
}

// Sessions returns the number of open WebSocket sessions.
func (s *Server) Sessions() int {
	return s.ws.Sessions()
}

// Run listens on Addr and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes every session and then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.ws.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
