package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/marketdash/internal/market"
)

// HealthHandler serves liveness and feed-status checks.
type HealthHandler struct {
	state     *market.State
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(state *market.State) *HealthHandler {
	return &HealthHandler{
		state:     state,
		startedAt: time.Now().UTC(),
	}
}

// HealthCheck reports process liveness and the current feed status.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"feed_status":    string(h.state.ConnectionStatus()),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
