package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/service"
)

// PriceHandler serves cached prices.
type PriceHandler struct {
	prices *service.PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices *service.PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{
		prices: prices,
		logger: logger.With(slog.String("handler", "prices")),
	}
}

// GetPrices returns the latest cached prices for a comma-separated symbol
// list. Symbols are normalised before lookup; unknown symbols are omitted.
// GET /api/prices?symbols=BTCUSDT,ETH/USDT
func (h *PriceHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if canonical := domain.NormalizeSymbol(s); canonical != "" {
			symbols = append(symbols, canonical)
		}
	}

	prices, err := h.prices.Prices(r.Context(), symbols)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}
