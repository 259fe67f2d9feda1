package api

import (
	"net/http"
)

// StatsProvider defines the interface for getting component statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() map[string]interface{}

// GetStats calls f.
func (f StatsFunc) GetStats() map[string]interface{} { return f() }

// StatsHandler handles stats requests.
type StatsHandler struct {
	providers map[string]StatsProvider
}

// NewStatsHandler creates a new stats handler. Each provider is reported
// under its key.
func NewStatsHandler(providers map[string]StatsProvider) *StatsHandler {
	return &StatsHandler{providers: providers}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	out := make(map[string]interface{}, len(h.providers))
	for name, p := range h.providers {
		if p != nil {
			out[name] = p.GetStats()
		}
	}
	writeJSON(w, http.StatusOK, out)
}
