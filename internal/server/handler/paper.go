package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/pnl"
)

// PaperResetter re-initialises the backend's paper account.
type PaperResetter interface {
	PaperInit(ctx context.Context, balance float64) error
}

// PaperHandler owns paper account lifecycle operations.
type PaperHandler struct {
	venue       PaperResetter
	ledger      *ledger.Ledger
	recorder    *pnl.Recorder
	initBalance float64
	logger      *slog.Logger
}

// NewPaperHandler creates a PaperHandler. recorder may be nil.
func NewPaperHandler(venue PaperResetter, lg *ledger.Ledger, recorder *pnl.Recorder, initBalance float64, logger *slog.Logger) *PaperHandler {
	return &PaperHandler{
		venue:       venue,
		ledger:      lg,
		recorder:    recorder,
		initBalance: initBalance,
		logger:      logger.With(slog.String("handler", "paper")),
	}
}

// Reset re-initialises the paper account: the simulator restarts at the
// configured balance, the ledger drops its paper rows, and the paper PnL
// series re-bases on the next balance reading.
// POST /api/paper/reset
func (h *PaperHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.venue.PaperInit(r.Context(), h.initBalance); err != nil {
		h.logger.ErrorContext(r.Context(), "paper init failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "paper init failed")
		return
	}

	removed := h.ledger.ClearSource(domain.SourcePaper)
	if h.recorder != nil {
		h.recorder.Reset(r.Context(), "paper")
	}

	h.logger.InfoContext(r.Context(), "paper account reset",
		slog.Float64("balance", h.initBalance),
		slog.Int("removed_positions", removed),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":           h.initBalance,
		"removed_positions": removed,
	})
}
