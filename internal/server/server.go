// Package server exposes the rule engine over HTTP.
//
// The completion endpoint speaks the OpenAI chat.completions shape so
// dictation tools can use the service as a post-processing model. Each
// request takes one store snapshot and applies it to the extracted text;
// the request context bounds any shell rules it runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/handyrules/internal/engine"
	"github.com/roach88/handyrules/internal/history"
	"github.com/roach88/handyrules/internal/metrics"
	"github.com/roach88/handyrules/internal/rulestore"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server is the HTTP front end.
type Server struct {
	store   *rulestore.Store
	engine  *engine.Engine
	history *history.Log
	metrics *metrics.Metrics

	apiKey  string
	cors    bool
	version string
	ids     IDGenerator
	logger  *slog.Logger
	now     func() time.Time

	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every request's trace in log.
func WithHistory(log *history.Log) Option {
	return func(s *Server) {
		s.history = log
	}
}

// WithMetrics counts requests and serves /metrics from m's registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAPIKey requires "Authorization: Bearer <key>" on /v1 routes.
func WithAPIKey(key string) Option {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithCORS enables permissive CORS headers.
func WithCORS(enabled bool) Option {
	return func(s *Server) {
		s.cors = enabled
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithIDGenerator replaces the request id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Server) {
		s.ids = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithClock overrides the time source for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a server reading rules from store and applying them with eng.
func New(store *rulestore.Store, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		store:   store,
		engine:  eng,
		version: "dev",
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /v1/rules", s.handleRules)
	mux.HandleFunc("POST /v1/rules/{id}/toggle", s.handleToggle)
	mux.HandleFunc("GET /v1/logs", s.handleLogs)
	mux.HandleFunc("DELETE /v1/logs", s.handleClearLogs)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	var h http.Handler = mux
	h = s.requireKey(h)
	if s.cors {
		h = cors(h)
	}
	return s.instrument(h)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts
// down, waiting up to shutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}
