// Package server exposes the pipeline over HTTP.
//
//	POST /v1/generate   script body → notebook text
//	POST /v1/export     notebook body → script text
//	POST /v1/graph      script or notebook body → cell graph
//	GET  /healthz       liveness and version
//	GET  /metrics       Prometheus metrics
//
// Options are query parameters (sample, source, refresh, main_block, format,
// input, reduce, skip_imports, detailed). Every response carries an
// X-Request-ID; an incoming one is kept. Failures are JSON bodies of the form
// {"code", "message", "line", "cell", "name"} with status 400 for bad input
// and 500 for engine defects.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stepbook/pkg/observability"
	"github.com/matzehuels/stepbook/pkg/pipeline"
)

// Defaults for server limits.
const (
	DefaultMaxBodyBytes    = pipeline.MaxInputSize
	DefaultRequestTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Runner *pipeline.Runner
	Logger *log.Logger
	// Metrics serves /metrics when set.
	Metrics *observability.Metrics
	// Defaults are the pipeline options each request starts from.
	Defaults pipeline.Options

	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Server is the HTTP front of a pipeline runner.
type Server struct {
	runner   *pipeline.Runner
	logger   *log.Logger
	metrics  *observability.Metrics
	defaults pipeline.Options
	maxBody  int64
	timeout  time.Duration
	router   chi.Router
}

// New builds a server and its routes.
func New(opts Options) *Server {
	s := &Server{
		runner:   opts.Runner,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		defaults: opts.Defaults,
		maxBody:  opts.MaxBodyBytes,
		timeout:  opts.RequestTimeout,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))
		r.Post("/generate", s.handleGenerate)
		r.Post("/export", s.handleExport)
		r.Post("/graph", s.handleGraph)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusNotFound, problem{Code: "NOT_FOUND", Message: "no route for " + r.URL.Path, Cell: -1})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, problem{Code: "METHOD_NOT_ALLOWED", Message: r.Method + " not allowed on " + r.URL.Path, Cell: -1})
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
