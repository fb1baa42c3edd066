package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/marketdash/internal/alert"
	"github.com/alanyoungcy/marketdash/internal/domain"
)

// AlertHandler serves the price-alert CRUD surface and the trigger history.
type AlertHandler struct {
	store   *alert.Store
	history domain.AlertHistoryStore
	logger  *slog.Logger
}

// NewAlertHandler creates an AlertHandler. history may be nil when no
// history tier is configured; the history endpoint then reports 404.
func NewAlertHandler(store *alert.Store, history domain.AlertHistoryStore, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		store:   store,
		history: history,
		logger:  logHandler(logger, "alert"),
	}
}

// ListAlerts returns alerts in insertion order, optionally filtered by
// symbol.
// GET /api/alerts?symbol=BTCUSDT
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		writeJSON(w, http.StatusOK, h.store.ForSymbol(symbol))
		return
	}
	writeJSON(w, http.StatusOK, h.store.All())
}

// createAlertRequest is the POST body for a new alert.
type createAlertRequest struct {
	Symbol      string  `json:"symbol"`
	TargetPrice float64 `json:"targetPrice"`
	Condition   string  `json:"condition"`
}

// CreateAlert adds a new price alert.
// POST /api/alerts
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.store.Add(r.Context(), req.Symbol, req.TargetPrice, domain.AlertCondition(req.Condition))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAlert) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("create alert failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteAlert removes an alert by id.
// DELETE /api/alerts/{id}
func (h *AlertHandler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.store.Remove(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Error("delete alert failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleAlert flips an alert's active flag. A fired alert stays fired.
// POST /api/alerts/{id}/toggle
func (h *AlertHandler) ToggleAlert(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	toggled, err := h.store.Toggle(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.Error("toggle alert failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to toggle alert")
		return
	}
	writeJSON(w, http.StatusOK, toggled)
}

// ListHistory returns recent trigger records, newest first.
// GET /api/alerts/history?limit=50
func (h *AlertHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "alert history is not configured")
		return
	}
	limit := queryInt(r, "limit", 50, 500)
	recs, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list alert history failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list alert history")
		return
	}
	if recs == nil {
		recs = []domain.TriggeredAlert{}
	}
	writeJSON(w, http.StatusOK, recs)
}
