package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DemoVenue runs backend self-test trades.
type DemoVenue interface {
	DemoTrade(ctx context.Context) error
	PaperDemoTrade(ctx context.Context) error
	AutotraderDemoTrade(ctx context.Context) error
}

// DemoHandler triggers a backend self-test trade: the simulator round-trip
// for paper accounts, or the small auto-closed live trade for live accounts.
type DemoHandler struct {
	venue       DemoVenue
	paper       bool
	demoTimeout time.Duration
	logger      *slog.Logger
}

// NewDemoHandler creates a DemoHandler. demoTimeout bounds the paper
// simulator round-trip.
func NewDemoHandler(venue DemoVenue, paper bool, demoTimeout time.Duration, logger *slog.Logger) *DemoHandler {
	if demoTimeout <= 0 {
		demoTimeout = 8 * time.Second
	}
	return &DemoHandler{
		venue:       venue,
		paper:       paper,
		demoTimeout: demoTimeout,
		logger:      logger.With(slog.String("handler", "demo")),
	}
}

type demoRequest struct {
	// Confirm must be true for the live self-test, which places a real
	// (small, auto-closed) order.
	Confirm bool `json:"confirm"`
	// Simulator forces the /live simulator round-trip even on a live
	// account.
	Simulator bool `json:"simulator"`
}

// Run executes the self-test trade.
// POST /api/demo
func (h *DemoHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req demoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	var (
		target string
		err    error
	)
	switch {
	case h.paper:
		target = "paper"
		demoCtx, cancel := context.WithTimeout(ctx, h.demoTimeout)
		defer cancel()
		err = h.venue.PaperDemoTrade(demoCtx)
	case req.Simulator:
		target = "simulator"
		demoCtx, cancel := context.WithTimeout(ctx, h.demoTimeout)
		defer cancel()
		err = h.venue.DemoTrade(demoCtx)
	default:
		if !req.Confirm {
			writeError(w, http.StatusConflict, "live demo trade requires confirm=true")
			return
		}
		target = "live"
		err = h.venue.AutotraderDemoTrade(ctx)
	}

	if err != nil {
		h.logger.WarnContext(ctx, "demo trade failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "demo trade failed: "+err.Error())
		return
	}

	h.logger.InfoContext(ctx, "demo trade completed", slog.String("target", target))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "target": target})
}
