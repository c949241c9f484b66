// Package autotrade turns accepted entry signals into venue orders, sized by
// the account's risk ladder rung.
package autotrade

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/notify"
)

// dedupeWindow is how long a routed trade number blocks re-routing. Scanner
// batches repeat open trades on every poll, so without this every tick would
// re-place the same order.
const dedupeWindow = 24 * time.Hour

// OrderPlacer submits an order to the venue (or the paper simulator).
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) error
}

// Config carries the router's tunables.
type Config struct {
	// Enabled gates all routing. When false every Route call returns
	// domain.ErrRouterOff.
	Enabled bool
	// MaxEquityPct is the fallback equity fraction used when the balance
	// falls outside the risk ladder. Accepts either a fraction (0.02) or a
	// percentage (2); zero means 2%.
	MaxEquityPct float64
	// Leverage is the configured sizing leverage. When zero the event's
	// reported leverage applies, clamped to at least 1x.
	Leverage float64
	// Paper marks routed orders as paper trades in the journal.
	Paper bool
}

// Router sizes and places orders for entry signals that already passed the
// intake gate.
type Router struct {
	cfg      Config
	placer   OrderPlacer
	journal  domain.TradeJournal
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	routed map[string]time.Time
}

// New creates a Router. journal, bus and notifier may be nil.
func New(cfg Config, placer OrderPlacer, journal domain.TradeJournal, bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *Router {
	return &Router{
		cfg:      cfg,
		placer:   placer,
		journal:  journal,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "autotrade_router")),
		routed:   make(map[string]time.Time),
	}
}

// SetEnabled flips the routing gate at runtime.
func (r *Router) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.cfg.Enabled = enabled
	r.mu.Unlock()
}

// Enabled reports whether routing is currently on.
func (r *Router) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.Enabled
}

// Route sizes an order for one accepted entry signal against the current
// account balance and places it. The returned decision records the verdict
// even when no order was placed.
func (r *Router) Route(ctx context.Context, ev domain.ScanEvent, balance float64) (domain.RouteDecision, error) {
	if !r.Enabled() {
		return domain.RouteDecision{Reason: "router disabled"}, domain.ErrRouterOff
	}
	if ev.TradeNo == "" {
		return domain.RouteDecision{Reason: "missing trade number"}, nil
	}
	if r.alreadyRouted(ev.TradeNo) {
		return domain.RouteDecision{Reason: "already routed"}, nil
	}

	size, level := r.orderSize(ev, balance)
	if size <= 0 {
		return domain.RouteDecision{Reason: "computed size is zero"}, nil
	}

	order := domain.OrderRequest{
		ID:       uuid.NewString(),
		TradeNo:  ev.TradeNo,
		Symbol:   domain.NormalizeSymbol(ev.Symbol),
		Side:     ev.SignalSide(),
		Size:     size,
		Leverage: r.leverage(ev),
	}

	if err := r.placer.PlaceOrder(ctx, order); err != nil {
		r.notifyError(ctx, order, err)
		return domain.RouteDecision{Reason: "order placement failed"}, fmt.Errorf("autotrade: place order for %s: %w", ev.TradeNo, err)
	}

	r.markRouted(ev.TradeNo)
	r.journalOrder(ctx, order, level)
	r.announce(ctx, order, level)

	decision := domain.RouteDecision{Accepted: true, Order: &order}
	if level != nil {
		l := level.Level
		decision.Level = &l
	}
	return decision, nil
}

// orderSize picks the ladder rung for the balance and derives the leveraged
// notional. When the ladder yields no rung the fallback equity fraction
// applies instead.
func (r *Router) orderSize(ev domain.ScanEvent, balance float64) (float64, *domain.RiskLevel) {
	if math.IsNaN(balance) || math.IsInf(balance, 0) || balance <= 0 {
		return 0, nil
	}

	lev := r.leverage(ev)

	level := domain.LevelForBalance(balance)
	if level == nil {
		basePct := domain.NormalizePct(r.cfg.MaxEquityPct)
		if basePct == 0 {
			basePct = 0.02
		}
		return balance * basePct * lev, nil
	}
	return level.Risk * lev, level
}

// leverage resolves the sizing leverage: the configured value wins, the
// event's reported leverage is the fallback, and anything below 1x clamps up.
func (r *Router) leverage(ev domain.ScanEvent) float64 {
	lev := r.cfg.Leverage
	if lev <= 0 {
		lev = ev.Leverage
	}
	if lev < 1 {
		lev = 1
	}
	return lev
}

func (r *Router) alreadyRouted(tradeNo string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.routed[tradeNo]
	if ok && time.Since(at) < dedupeWindow {
		return true
	}
	// Expired entries are pruned lazily.
	for no, t := range r.routed {
		if time.Since(t) >= dedupeWindow {
			delete(r.routed, no)
		}
	}
	return false
}

func (r *Router) markRouted(tradeNo string) {
	r.mu.Lock()
	r.routed[tradeNo] = time.Now()
	r.mu.Unlock()
}

func (r *Router) journalOrder(ctx context.Context, order domain.OrderRequest, level *domain.RiskLevel) {
	if r.journal == nil {
		return
	}

	rec := domain.TradeRecord{
		ID:        order.ID,
		TradeNo:   order.TradeNo,
		Source:    domain.SourceSignal,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Size:      order.Size,
		Leverage:  order.Leverage,
		Status:    "routed",
		Paper:     r.cfg.Paper,
		CreatedAt: time.Now().UTC(),
	}
	if level != nil {
		l := level.Level
		rec.Level = &l
	}

	if err := r.journal.Insert(ctx, rec); err != nil {
		r.logger.WarnContext(ctx, "failed to journal routed order",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Router) announce(ctx context.Context, order domain.OrderRequest, level *domain.RiskLevel) {
	r.logger.InfoContext(ctx, "routed order",
		slog.String("order_id", order.ID),
		slog.String("trade_no", order.TradeNo),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Float64("size", order.Size),
		slog.Float64("leverage", order.Leverage),
	)

	if r.bus != nil {
		if payload, err := json.Marshal(order); err == nil {
			if err := r.bus.Publish(ctx, "router", payload); err != nil {
				r.logger.WarnContext(ctx, "failed to publish routed order",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if r.notifier != nil {
		rung := "fallback sizing"
		if level != nil {
			rung = fmt.Sprintf("ladder level %d", level.Level)
		}
		msg := fmt.Sprintf("%s %s %.2f USDT @ %gx (%s)", order.Side, order.Symbol, order.Size, order.Leverage, rung)
		if err := r.notifier.Notify(ctx, "order_routed", "Order routed", msg); err != nil {
			r.logger.WarnContext(ctx, "failed to send route notification",
				slog.String("error", err.Error()),
			)
		}
	}
}

func (r *Router) notifyError(ctx context.Context, order domain.OrderRequest, err error) {
	r.logger.ErrorContext(ctx, "order placement failed",
		slog.String("trade_no", order.TradeNo),
		slog.String("symbol", order.Symbol),
		slog.String("error", err.Error()),
	)
	if r.notifier != nil {
		msg := fmt.Sprintf("%s %s: %v", order.Side, order.Symbol, err)
		_ = r.notifier.Notify(ctx, "error", "Order placement failed", msg)
	}
}
