package api

import "net/http"

// StatusDocument is the body of GET /.
type StatusDocument struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	Version  string   `json:"version"`
	Model    string   `json:"model"`
	Features []string `json:"features"`
}

var baseFeatures = []string{
	"Psychological triggers",
	"Deep personalization",
	"Mind games",
	"Future predictions",
}

// Status returns the status document.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	features := append([]string(nil), baseFeatures...)
	if !h.info.Generator {
		features = append(features, "Scripted follow-ups")
	}
	if h.info.Ledger {
		features = append(features, "Outcome stats")
	}

	JSON(w, http.StatusOK, StatusDocument{
		Status:   "active",
		Message:  "MindProbe - the conversation you'll remember 🚀",
		Version:  h.info.Version,
		Model:    h.info.Model,
		Features: features,
	})
}
