// Package api exposes the correction engine over an HTTP JSON API.
//
// All /v1 routes sit behind the observability middleware from
// [observe.Middleware]; /healthz, /readyz, and /metrics are served alongside
// them. The engine endpoints (/v1/extract, /v1/parse, /v1/reconcile,
// /v1/align) are pure and always available. /v1/correct, /v1/live, and the
// history endpoints depend on the configured LLM provider, embeddings
// provider, and store, and answer 503 when their dependency is absent.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redlinehq/redline/internal/corrector"
	"github.com/redlinehq/redline/internal/health"
	"github.com/redlinehq/redline/internal/history"
	"github.com/redlinehq/redline/internal/observe"
	"github.com/redlinehq/redline/pkg/provider/embeddings"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithCorrector enables /v1/correct and /v1/live.
func WithCorrector(c *corrector.Corrector) Option {
	return func(s *Server) {
		s.corrector = c
	}
}

// WithEmbeddings enables /v1/history/similar and embedding of saved results.
func WithEmbeddings(p embeddings.Provider) Option {
	return func(s *Server) {
		s.embedder = p
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRecentLimit sets the default page size for /v1/history when the
// request carries no limit parameter.
func WithRecentLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.recentLimit.Store(int64(n))
		}
	}
}

// Server is the HTTP front end of the correction engine.
type Server struct {
	store     history.Store
	corrector *corrector.Corrector
	embedder  embeddings.Provider
	metrics   *observe.Metrics

	// recentLimit is the default history page size. Atomic because it is
	// hot-reloadable while requests are in flight.
	recentLimit atomic.Int64

	httpServer *http.Server
}

// New creates a [Server] serving on addr. The store must be non-nil; use
// [history.NewMemory] when running without persistence.
func New(addr string, store history.Store, opts ...Option) *Server {
	s := &Server{store: store}
	s.recentLimit.Store(history.DefaultRecentLimit)
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// buildHandler assembles the route table. The observe middleware wraps the
// /v1 routes; probes and metrics stay outside it so scrapes and kubelet
// probes do not flood the request log.
func (s *Server) buildHandler() http.Handler {
	v1 := http.NewServeMux()
	v1.HandleFunc("POST /v1/extract", s.handleExtract)
	v1.HandleFunc("POST /v1/parse", s.handleParse)
	v1.HandleFunc("POST /v1/reconcile", s.handleReconcile)
	v1.HandleFunc("POST /v1/align", s.handleAlign)
	v1.HandleFunc("POST /v1/correct", s.handleCorrect)
	v1.HandleFunc("GET /v1/history", s.handleHistory)
	v1.HandleFunc("GET /v1/history/similar", s.handleSimilar)
	v1.HandleFunc("GET /v1/live", s.handleLive)

	root := http.NewServeMux()
	root.Handle("/v1/", observe.Middleware(s.metrics)(v1))
	root.Handle("GET /metrics", promhttp.Handler())
	s.healthHandler().Register(root)
	return root
}

// healthHandler builds the readiness checker set from the configured
// dependencies.
func (s *Server) healthHandler() *health.Handler {
	checkers := []health.Checker{
		{
			Name: "store",
			Check: func(ctx context.Context) error {
				return s.store.Ping(ctx)
			},
		},
	}
	if s.corrector != nil {
		checkers = append(checkers, health.Checker{
			Name: "llm",
			Check: func(context.Context) error {
				if s.corrector.ModelID() == "" {
					return errors.New("no model configured")
				}
				return nil
			},
		})
	}
	return health.New(checkers...)
}

// SetRecentLimit updates the default history page size. Safe to call while
// the server is running; used by config hot reload.
func (s *Server) SetRecentLimit(n int) {
	if n > 0 {
		s.recentLimit.Store(int64(n))
	}
}

// Handler returns the fully assembled route handler. Intended for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown is called or the
// listener fails. [http.ErrServerClosed] is swallowed — a clean shutdown is
// not an error.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// ListenAndServeTLS is [Server.ListenAndServe] with TLS enabled.
func (s *Server) ListenAndServeTLS(certFile, keyFile string) error {
	if err := s.httpServer.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
