// Package api implements the manager's own HTTP surface (spec.md C18):
// a read-mostly status/visibility API plus manual operation triggers,
// so an operator (or this repo's own Scheduler, indirectly, through the
// Dispatcher it shares) has somewhere to drive the system from. Grounded
// on the teacher's internal/api/server.go (chi + middleware stack,
// JSON envelope handlers) with the UI-serving and Kubernetes-specific
// pieces dropped: this system has no dashboard, so there is nothing to
// embed or serve at "/*".
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/config"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/dispatch"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/health"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/maintenance"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/manager/optracker"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/metrics"
)

// Server is the manager's HTTP server.
type Server struct {
	port        int
	logger      zerolog.Logger
	server      *http.Server
	startTime   time.Time
	nodes       map[string]config.NodeConfig
	dispatcher  *dispatch.Dispatcher
	optracker   *optracker.Tracker
	maintenance *maintenance.Tracker
	health      *health.Monitor
}

// Options configures a new Server.
type Options struct {
	Port        int
	Nodes       map[string]config.NodeConfig
	Dispatcher  *dispatch.Dispatcher
	Optracker   *optracker.Tracker
	Maintenance *maintenance.Tracker
	Health      *health.Monitor
}

func NewServer(opts Options) *Server {
	return &Server{
		port:        opts.Port,
		logger:      log.WithComponent("manager-api"),
		startTime:   time.Now(),
		nodes:       opts.Nodes,
		dispatcher:  opts.Dispatcher,
		optracker:   opts.Optracker,
		maintenance: opts.Maintenance,
		health:      opts.Health,
	}
}

// Start runs the HTTP server until ctx is cancelled, then gracefully
// shuts it down.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info().Int("port", s.port).Msg("starting manager HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("manager HTTP server error")
		}
	}()

	<-ctx.Done()

	s.logger.Info().Msg("shutting down manager HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)

	h := &handlers{server: s}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/nodes", h.listNodes)
		r.Get("/nodes/{name}/health", h.nodeHealth)
		r.Post("/nodes/{name}/pruning", h.triggerPruning)
		r.Post("/nodes/{name}/snapshot/create", h.triggerSnapshotCreate)
		r.Post("/nodes/{name}/snapshot/restore", h.triggerSnapshotRestore)
		r.Post("/nodes/{name}/state-sync", h.triggerStateSync)
		r.Get("/operations", h.listOperations)
		r.Get("/maintenance", h.listMaintenance)
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return r
}
