// Package server exposes the query service over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/nlsql/internal/logger"
	"github.com/koustreak/nlsql/internal/metrics"
	"github.com/koustreak/nlsql/internal/service"
)

type Config struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	Environment     string

	Service *service.Service
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Server struct {
	cfg     Config
	svc     *service.Service
	metrics *metrics.Metrics
	log     *logger.Logger
	router  chi.Router
}

func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:     cfg,
		svc:     cfg.Service,
		metrics: cfg.Metrics,
		log:     log.Component("http"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		requestID,
		middleware.RealIP,
		accessLog(s.log),
		s.instrument,
		recoverer(s.log),
		cors(s.cfg.CORSOrigins),
	)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/query", s.handleQuery)
	r.Post("/sql", s.handleSQL)
	r.Get("/schema", s.handleSchema)
	r.Get("/schema/tables", s.handleSchemaTables)
	r.Get("/database-info", s.handleDatabaseInfo)
	r.Get("/databases", s.handleDatabases)
	r.Get("/tables/{table}/preview", s.handlePreview)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: "no route for " + r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Detail: r.Method + " " + r.URL.Path})
	})
	return r
}

// Serve listens on cfg.Addr until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.log.InfoWith("http server listening", map[string]any{"addr": ln.Addr().String()})
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
