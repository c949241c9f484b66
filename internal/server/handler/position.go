package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/service"
)

// PositionHandler exposes the ledger and the operator actions on it.
type PositionHandler struct {
	positions *service.PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions *service.PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger.With(slog.String("handler", "positions")),
	}
}

// ListPositions returns the current ledger snapshot.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positions.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

type addManualRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Size       float64  `json:"size"`
	Leverage   float64  `json:"leverage"`
	EntryPrice float64  `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// AddManual inserts an operator-entered position.
// POST /api/positions
func (h *PositionHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	var req addManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pos, err := h.positions.AddManual(r.Context(), domain.Position{
		Symbol:     req.Symbol,
		Side:       domain.Side(req.Side),
		Size:       req.Size,
		Leverage:   req.Leverage,
		EntryPrice: req.EntryPrice,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

type closeRequest struct {
	Key string `json:"key"`
}

// ClosePosition flattens one ledger row. The key travels in the body because
// ledger keys contain slashes.
// POST /api/positions/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.positions.Close(r.Context(), req.Key); err != nil {
		h.logger.WarnContext(r.Context(), "close failed",
			slog.String("key", req.Key),
			slog.String("error", err.Error()),
		)
		writeError(w, closeStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"closed": req.Key})
}

type editStopsRequest struct {
	Key        string   `json:"key"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

// EditStops sets or clears a row's stop levels.
// PUT /api/positions/stops
func (h *PositionHandler) EditStops(w http.ResponseWriter, r *http.Request) {
	var req editStopsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	pos, err := h.positions.EditStops(r.Context(), req.Key, req.StopLoss, req.TakeProfit)
	if err != nil {
		h.logger.WarnContext(r.Context(), "edit stops failed",
			slog.String("key", req.Key),
			slog.String("error", err.Error()),
		)
		writeError(w, closeStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// closeStatus maps service errors onto HTTP status codes.
func closeStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPaperOnly):
		return http.StatusConflict
	case errors.Is(err, domain.ErrVenueCooldown):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
