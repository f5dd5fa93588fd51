package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/makt28/netcanary/internal/history"
)

// Version is reported by /healthz and the version flag.
var Version = "0.1.0"

// HealthHandler serves the /healthz endpoint.
type HealthHandler struct {
	history *history.Store
	clock   clockwork.Clock
	started time.Time
}

func NewHealthHandler(hist *history.Store, clock clockwork.Clock, started time.Time) *HealthHandler {
	return &HealthHandler{history: hist, clock: clock, started: started}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channels := h.history.All()
	healthy := 0
	for _, c := range channels {
		if c.Healthy {
			healthy++
		}
	}

	resp := map[string]interface{}{
		"status":           "ok",
		"version":          Version,
		"uptime_seconds":   int(h.clock.Since(h.started).Seconds()),
		"channel_count":    len(channels),
		"healthy_channels": healthy,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
