// Package server exposes the health and counters of a running process over
// HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tarungka/wireflow/internal/logger"
	"github.com/tarungka/wireflow/internal/metrics"
)

type Server struct {
	addr     string
	build    string
	registry *metrics.Registry

	mu    sync.Mutex
	runID string

	logger zerolog.Logger
}

// New returns a server for addr reporting the workers in registry.
func New(addr, build string, registry *metrics.Registry) *Server {
	return &Server{
		addr:     addr,
		build:    build,
		registry: registry,
		logger:   logger.GetLogger("server"),
	}
}

// SetRunID records the id of the run being reported.
func (s *Server) SetRunID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = id
}

func (s *Server) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Heartbeat("/health"))
	router.Use(middleware.CleanPath)

	router.Mount("/status", s.StatusRouter())
	return router
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.logger.Info().Msgf("Running the web server on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Err(err).Msg("web server stopped")
		return err
	}
	return nil
}
