// Package api provides the HTTP endpoints around the conversation socket.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/mindprobe/internal/store"
	"github.com/go-chi/chi/v5"
)

// Info describes the running server for the status document.
type Info struct {
	Version   string
	Model     string
	Generator bool // false when every follow-up comes from the fallback bank
	Ledger    bool
}

// Handler serves the status, health and stats endpoints.
type Handler struct {
	repo store.Repository
	info Info
}

// NewHandler creates a Handler. A nil repo behaves like store.Noop.
func NewHandler(repo store.Repository, info Info) *Handler {
	if repo == nil {
		repo = store.Noop{}
	}
	return &Handler{repo: repo, info: info}
}

// RegisterRoutes mounts the handler's endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Status)
	r.Get("/health", h.Health)
	r.Get("/api/stats", h.Stats)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
