// Package handlers implements HTTP request handlers for the GridPulse API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gridpulse/gridpulse/internal/pipeline"
	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/internal/topology"
)

// Handlers contains all HTTP handler dependencies.
type Handlers struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	graph    *topology.Graph
	logger   *slog.Logger
}

// New creates a new Handlers instance.
func New(st store.Store, pl *pipeline.Pipeline, graph *topology.Graph) *Handlers {
	return &Handlers{
		store:    st,
		pipeline: pl,
		graph:    graph,
		logger:   slog.Default(),
	}
}

// SetLogger overrides the default logger.
func (h *Handlers) SetLogger(l *slog.Logger) {
	if l != nil {
		h.logger = l
	}
}

// writeJSON encodes v as the response body.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError logs the internal error and returns a sanitized JSON error to the client.
func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		h.logger.Error(msg, "error", err, "status", status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// queryLimit parses the "limit" query parameter, falling back to def and
// capping at max.
func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
