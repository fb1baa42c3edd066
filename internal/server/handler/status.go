package handler

import (
	"net/http"

	"github.com/alanyoungcy/marketdash/internal/market"
)

// StatusHandler reports the dashboard's current view state.
type StatusHandler struct {
	state *market.State
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(state *market.State) *StatusHandler {
	return &StatusHandler{state: state}
}

// GetStatus returns the feed status and the current selection.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connection_status": string(h.state.ConnectionStatus()),
		"selected_symbol":   h.state.SelectedSymbol(),
		"time_interval":     string(h.state.TimeInterval()),
		"favorites":         h.state.Favorites(),
	})
}
