package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketdash/internal/domain"
	"github.com/alanyoungcy/marketdash/internal/market"
)

// PreferenceHandler serves the durable user preference surface: selection,
// interval, and favorites.
type PreferenceHandler struct {
	state  *market.State
	logger *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(state *market.State, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		state:  state,
		logger: logHandler(logger, "preference"),
	}
}

// GetPreferences returns the current preference record.
// GET /api/preferences
func (h *PreferenceHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Preferences())
}

// preferenceRequest is the PUT body; absent fields keep their current value.
type preferenceRequest struct {
	SelectedSymbol *string   `json:"selectedSymbol"`
	TimeInterval   *string   `json:"timeInterval"`
	Favorites      *[]string `json:"favorites"`
}

// UpdatePreferences applies a partial preference update.
// PUT /api/preferences
func (h *PreferenceHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prefs := h.state.Preferences()
	if req.SelectedSymbol != nil {
		if *req.SelectedSymbol == "" {
			writeError(w, http.StatusBadRequest, "selectedSymbol must not be empty")
			return
		}
		prefs.SelectedSymbol = *req.SelectedSymbol
	}
	if req.TimeInterval != nil {
		interval := domain.TimeInterval(*req.TimeInterval)
		if !interval.Valid() {
			writeError(w, http.StatusBadRequest, "unsupported interval")
			return
		}
		prefs.TimeInterval = interval
	}
	if req.Favorites != nil {
		prefs.Favorites = *req.Favorites
	}

	h.state.ApplyPreferences(prefs)
	writeJSON(w, http.StatusOK, h.state.Preferences())
}

// ToggleFavorite flips one symbol's favorite membership.
// POST /api/favorites/{symbol}
func (h *PreferenceHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	favorite := h.state.ToggleFavorite(symbol)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":   symbol,
		"favorite": favorite,
	})
}
