package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gridpulse/gridpulse/internal/store"
	"github.com/gridpulse/gridpulse/pkg/types"
)

const cycleLockKey = "cycle:runner"

// ListCycles returns recent cycle summaries, newest first.
func (h *Handlers) ListCycles(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListCycleSummaries(r.Context(), queryLimit(r, 20, 200))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list cycles", err)
		return
	}
	if summaries == nil {
		summaries = []types.CycleSummary{}
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// LatestCycle returns the most recent cycle summary.
func (h *Handlers) LatestCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.LatestCycleSummary(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no cycles have run yet", nil)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get latest cycle", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// RunCycle triggers an assessment cycle immediately. The scheduler lock is
// held for the duration so a manual run never overlaps a scheduled one.
func (h *Handlers) RunCycle(w http.ResponseWriter, r *http.Request) {
	acquired, err := h.store.AcquireLock(r.Context(), cycleLockKey, 10*time.Minute)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to acquire cycle lock", err)
		return
	}
	if !acquired {
		h.writeError(w, http.StatusConflict, "a cycle is already running", nil)
		return
	}
	defer func() {
		if err := h.store.ReleaseLock(r.Context(), cycleLockKey); err != nil {
			h.logger.Warn("failed to release cycle lock", "error", err)
		}
	}()

	summary, err := h.pipeline.RunCycle(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "cycle failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, summary)
}
