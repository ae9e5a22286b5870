package handlers

import (
	"net/http"
	"strconv"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

// ListAlerts returns recent alerts, filtered by the zone, severity, kind,
// and resolved query parameters.
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := store.AlertQuery{
		ZoneID:   r.URL.Query().Get("zone"),
		Severity: types.PolicyTier(r.URL.Query().Get("severity")),
		Kind:     types.AlertKind(r.URL.Query().Get("kind")),
		Limit:    queryLimit(r, 50, 500),
	}
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "resolved must be true or false", nil)
			return
		}
		q.Resolved = &resolved
	}

	alerts, err := h.store.ListAlerts(r.Context(), q)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}
	h.writeJSON(w, http.StatusOK, alerts)
}

// ListEvents returns constraint events, filtered by the zone, severity, and
// state query parameters. State is "open", "closed", or empty for both.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	switch state {
	case "", "open", "closed":
	default:
		h.writeError(w, http.StatusBadRequest, "state must be open or closed", nil)
		return
	}

	events, err := h.store.ListEvents(r.Context(), store.EventQuery{
		ZoneID:   r.URL.Query().Get("zone"),
		Severity: types.PolicyTier(r.URL.Query().Get("severity")),
		State:    state,
		Limit:    queryLimit(r, 50, 500),
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list events", err)
		return
	}
	if events == nil {
		events = []types.ConstraintEvent{}
	}
	h.writeJSON(w, http.StatusOK, events)
}
