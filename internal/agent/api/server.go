// Package api implements the agent's bearer-token-authenticated HTTP
// surface (spec.md C5 / §4.5 / §6).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/exec"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/jobs"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/registry"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/agent/sequences"
	"github.com/nolus-protocol/nodes-manager-sub001/internal/log"
)

// Server is the agent's HTTP server.
type Server struct {
	port      int
	apiKey    string
	server    *http.Server
	logger    zerolog.Logger
	registry  *registry.Registry
	jobStore  *jobs.Store
	executor  *jobs.Executor
	sequences *sequences.Sequences
	runner    *exec.Runner
}

// Options configures a new Server.
type Options struct {
	Port   int
	APIKey string
}

func NewServer(opts Options, reg *registry.Registry, jobStore *jobs.Store) *Server {
	runner := exec.New()
	return &Server{
		port:      opts.Port,
		apiKey:    opts.APIKey,
		logger:    log.WithComponent("agent-api"),
		registry:  reg,
		jobStore:  jobStore,
		executor:  jobs.NewExecutor(reg, jobStore),
		sequences: sequences.New(runner),
		runner:    runner,
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
		s.logger.Info().Int("port", s.port).Msg("starting agent HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("agent HTTP server error")
		}
	}()

	<-ctx.Done()

	s.logger.Info().Msg("shutting down agent HTTP server")
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
	r.Use(s.bearerAuth)

	h := &handlers{server: s}

	r.Post("/command/execute", h.commandExecute)
	r.Post("/service/status", h.serviceStatus)
	r.Post("/service/start", h.serviceStart)
	r.Post("/service/stop", h.serviceStop)
	r.Post("/service/uptime", h.serviceUptime)
	r.Post("/logs/truncate", h.logsTruncate)
	r.Post("/logs/delete-all", h.logsDeleteAll)
	r.Post("/pruning/execute", h.pruningExecute)
	r.Post("/snapshot/create", h.snapshotCreate)
	r.Post("/snapshot/restore", h.snapshotRestore)
	r.Post("/snapshot/check-triggers", h.snapshotCheckTriggers)
	r.Post("/state-sync/execute", h.stateSyncExecute)
	r.Get("/operation/status/{job_id}", h.operationStatus)
	r.Post("/status/busy", h.statusBusy)
	r.Post("/status/cleanup", h.statusCleanup)

	return r
}
