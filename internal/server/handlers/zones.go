package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// ListZones returns every zone in the monitored topology.
func (h *Handlers) ListZones(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.graph.Zones())
}

// GetZone returns a single zone with its neighbors.
func (h *Handlers) GetZone(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	zone, ok := h.graph.Zone(zoneID)
	if !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"zone":      zone,
		"neighbors": h.graph.Neighbors(zoneID),
	})
}

// ListReadings returns the most recent readings for a zone and metric.
func (h *Handlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	if _, ok := h.graph.Zone(zoneID); !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}

	metric := types.Metric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = types.MetricEnergy
	}
	if !types.ValidMetric(metric) {
		h.writeError(w, http.StatusBadRequest, "unknown metric", nil)
		return
	}

	limit := queryLimit(r, 24, 500)
	readings, err := h.store.LatestReadings(r.Context(), zoneID, metric, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list readings", err)
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	h.writeJSON(w, http.StatusOK, readings)
}

// GetForecast returns the latest demand forecast for a zone.
func (h *Handlers) GetForecast(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	if _, ok := h.graph.Zone(zoneID); !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}

	f, err := h.store.GetForecast(r.Context(), zoneID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no forecast for zone", nil)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get forecast", err)
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

// GetRiskScore returns the latest composite risk score for a zone.
func (h *Handlers) GetRiskScore(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	if _, ok := h.graph.Zone(zoneID); !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}

	rs, err := h.store.GetRiskScore(r.Context(), zoneID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no risk score for zone", nil)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get risk score", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rs)
}

// ListRiskHistory returns recent risk scores for a zone, newest first.
func (h *Handlers) ListRiskHistory(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	if _, ok := h.graph.Zone(zoneID); !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}

	limit := queryLimit(r, 20, 500)
	history, err := h.store.ListRiskHistory(r.Context(), zoneID, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list risk history", err)
		return
	}
	if history == nil {
		history = []types.RiskScore{}
	}
	h.writeJSON(w, http.StatusOK, history)
}

// GetRecommendations returns the latest recommendation set for a zone.
func (h *Handlers) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")
	if _, ok := h.graph.Zone(zoneID); !ok {
		h.writeError(w, http.StatusNotFound, "zone not found", nil)
		return
	}

	set, err := h.store.GetRecommendations(r.Context(), zoneID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no recommendations for zone", nil)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get recommendations", err)
		return
	}
	h.writeJSON(w, http.StatusOK, set)
}
