// Package server implements the GridPulse HTTP API server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gridpulse/gridpulse/internal/pipeline"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/topology"
)

const defaultMaxBody = 1 << 20

// Server is the GridPulse HTTP API server.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	graph    *topology.Graph
	router   chi.Router
	addr     string
	srv      *http.Server
}

// New creates a new HTTP server. maxBody limits request body size in bytes;
// zero or negative means the 1 MiB default.
func New(addr, apiKey string, maxBody int64, st store.Store, pl *pipeline.Pipeline, graph *topology.Graph) *Server {
	s := &Server{
		store:    st,
		pipeline: pl,
		graph:    graph,
		addr:     addr,
	}

	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(APIKeyMiddleware(apiKey))
	r.Use(MaxBodyMiddleware(maxBody))

	s.router = r
	s.registerRoutes(r)
	return s
}

// Handler returns the underlying router (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	fmt.Printf("GridPulse server listening on %s\n", s.addr)
	return s.srv.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
