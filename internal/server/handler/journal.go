package handler

import (
	"log/slog"
	"net/http"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// JournalHandler serves the persisted trade journal and signal log.
type JournalHandler struct {
	journal domain.TradeJournal
	signals domain.SignalLog
	logger  *slog.Logger
}

// NewJournalHandler creates a JournalHandler. Either store may be nil when
// Postgres is not configured; the matching endpoints then answer 409.
func NewJournalHandler(journal domain.TradeJournal, signals domain.SignalLog, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{
		journal: journal,
		signals: signals,
		logger:  logger.With(slog.String("handler", "journal")),
	}
}

// ListTrades returns the newest journal rows.
// GET /api/trades?limit=50
func (h *JournalHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusConflict, "trade journal is not configured")
		return
	}

	trades, err := h.journal.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list trades failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

// ListSignals returns the newest signal log rows with their intake verdicts.
// GET /api/signals?limit=50
func (h *JournalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	if h.signals == nil {
		writeError(w, http.StatusConflict, "signal log is not configured")
		return
	}

	signals, err := h.signals.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
	})
}
