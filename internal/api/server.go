package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mtr002/bansu-harness/internal/logger"
)

// Server is a scripted stand-in for a Bansu deployment
type Server struct {
	registry *Registry
	scenario Scenario
	prefix   string
	port     string

	mu     sync.Mutex
	server *http.Server
}

func NewServer(scenario Scenario, prefix, port string) *Server {
	return &Server{
		registry: NewRegistry(),
		scenario: scenario,
		prefix:   prefix,
		port:     port,
	}
}

// Handler returns the routed handler, for use with httptest
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	AddRoutes(mux, s.prefix, s.registry, s.scenario)
	return mux
}

// Registry exposes the jobs accepted so far
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	logger.Logger.Info().
		Str("addr", addr).
		Str("prefix", s.prefix).
		Str("scenario", s.scenario.Name).
		Msg("Starting stub server")

	// No write timeout: job channels stay open for the whole job.
	server := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
