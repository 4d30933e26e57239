package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Health reports the server and its dependencies. A missing generator only
// degrades follow-up quality, so it never fails the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "generator": "ok"}
	if !h.info.Generator {
		checks["generator"] = "fallback_only"
	}

	status := "healthy"
	code := http.StatusOK
	if h.info.Ledger {
		if err := h.repo.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			checks["database"] = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "disabled"
	}

	JSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
