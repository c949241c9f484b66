package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/autotrade"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/scan"
	"github.com/wolfmystrix/mystrix-console/internal/service"
)

// StatusHandler reports the console's runtime state and owns the router
// toggle.
type StatusHandler struct {
	mode      string
	paper     bool
	startedAt time.Time
	ledger    *ledger.Ledger
	balances  *service.BalanceService
	router    *autotrade.Router
	pulse     *scan.Pulse
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler. balances and router may be nil
// depending on the run mode.
func NewStatusHandler(
	mode string,
	paper bool,
	startedAt time.Time,
	lg *ledger.Ledger,
	balances *service.BalanceService,
	router *autotrade.Router,
	logger *slog.Logger,
) *StatusHandler {
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &StatusHandler{
		mode:      mode,
		paper:     paper,
		startedAt: startedAt,
		ledger:    lg,
		balances:  balances,
		router:    router,
		logger:    logger.With(slog.String("handler", "status")),
	}
}

// WithPulse attaches the scanner heartbeat so GET /api/status can report
// feed liveness.
func (h *StatusHandler) WithPulse(p *scan.Pulse) *StatusHandler {
	h.pulse = p
	return h
}

// Status reports mode, balance, ladder rung and router state.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"mode":           h.mode,
		"paper":          h.paper,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"positions":      h.ledger.Len(),
		"router_enabled": h.router != nil && h.router.Enabled(),
	}

	if h.balances != nil {
		balance, level := h.balances.Balance()
		out["balance"] = balance
		if level != nil {
			out["level"] = level
		}
	}

	if h.pulse != nil {
		last, count := h.pulse.Last()
		out["scan_count"] = count
		if !last.IsZero() {
			out["last_scan_at"] = last.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, out)
}

type routerToggleRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleRouter flips the auto-trade gate at runtime.
// POST /api/router
func (h *StatusHandler) ToggleRouter(w http.ResponseWriter, r *http.Request) {
	if h.router == nil {
		writeError(w, http.StatusConflict, "router is not available in this mode")
		return
	}

	var req routerToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.router.SetEnabled(req.Enabled)
	h.logger.InfoContext(r.Context(), "router toggled",
		slog.Bool("enabled", req.Enabled),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// Balance reports the last observed account balance and ladder rung.
// GET /api/balance
func (h *StatusHandler) Balance(w http.ResponseWriter, r *http.Request) {
	if h.balances == nil {
		writeError(w, http.StatusConflict, "no balance feed in this mode")
		return
	}

	balance, level := h.balances.Balance()
	out := map[string]any{"balance": balance, "mode": h.balances.Mode()}
	if level != nil {
		out["level"] = level
	}
	writeJSON(w, http.StatusOK, out)
}
