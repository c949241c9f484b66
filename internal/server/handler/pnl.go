package handler

import (
	"net/http"

	"github.com/wolfmystrix/mystrix-console/internal/pnl"
)

// PnLHandler serves the session PnL series for the console chart.
type PnLHandler struct {
	recorder    *pnl.Recorder
	defaultMode string
}

// NewPnLHandler creates a PnLHandler answering for defaultMode when the
// query does not name one.
func NewPnLHandler(recorder *pnl.Recorder, defaultMode string) *PnLHandler {
	return &PnLHandler{recorder: recorder, defaultMode: defaultMode}
}

// Series returns one mode's PnL series.
// GET /api/pnl/series?mode=paper|live
func (h *PnLHandler) Series(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = h.defaultMode
	}
	if mode != "paper" && mode != "live" {
		writeError(w, http.StatusBadRequest, "mode must be paper or live")
		return
	}

	series := h.recorder.Series(mode)
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":    mode,
		"base":    series.Base,
		"samples": series.Samples,
	})
}
