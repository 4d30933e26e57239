package api

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
)

// Stats aggregates session outcomes over ?window= (a Go duration, default 24h).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.info.Ledger {
		Error(w, http.StatusNotFound, "outcome ledger disabled")
		return
	}

	window := defaultStatsWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxStatsWindow {
			Error(w, http.StatusBadRequest, "window must be a positive duration up to 2160h")
			return
		}
		window = d
	}

	stats, err := h.repo.OutcomeStats(r.Context(), time.Now().Add(-window))
	if err != nil {
		slog.Error("Failed to load outcome stats", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	JSON(w, http.StatusOK, stats)
}
