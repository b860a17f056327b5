// Package server exposes the execution core over HTTP: a JSON API for
// one-shot executions and exercise test runs, a websocket endpoint streaming
// steps live, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielterwiel/stepvis/catalog"
	"github.com/danielterwiel/stepvis/executor"
)

// Server is the HTTP server for the stepvis API.
type Server struct {
	runner   *executor.Executor
	catalog  *catalog.Registry
	log      *zap.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	router   chi.Router
	http     *http.Server
}

// New creates a Server around the given runner and exercise catalog.
func New(runner *executor.Executor, cat *catalog.Registry, log *zap.Logger) *Server {
	reg, metrics := NewRegistry()
	s := &Server{
		runner:   runner,
		catalog:  cat,
		log:      log,
		metrics:  metrics,
		registry: reg,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Post("/execute", s.handleExecute)

		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Post("/exercises/{id}/run", s.handleRunExercise)

		// WebSocket (upgrade hijacks the connection, content type is moot)
		r.Get("/execute/ws", s.handleExecuteWS)
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestId", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Handler returns the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("server listening", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
