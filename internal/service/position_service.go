package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/notify"
)

// stopCooldown blocks repeated trading-stop calls for a symbol the venue
// rejected as unknown.
const stopCooldown = time.Minute

// ClosingVenue is the slice of the backend client position operations need.
type ClosingVenue interface {
	PaperClose(ctx context.Context, tradeID string) error
	PlaceOrder(ctx context.Context, ord domain.OrderRequest) error
	TradingStop(ctx context.Context, symbol string, side domain.Side, stopLoss, takeProfit *float64) error
}

// QuoteSource supplies cached mark prices and can force a refresh when the
// cache has none for a symbol.
type QuoteSource interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
	RefreshAll(ctx context.Context) (int, error)
}

// SymbolCatalog answers whether a symbol is known to the backend. An empty
// catalog validates nothing.
type SymbolCatalog interface {
	Contains(symbol string) bool
	Len() int
}

// PositionServiceConfig carries the guard rails for live operations.
type PositionServiceConfig struct {
	// Paper marks the console as following the paper account; venue-backed
	// operations on live rows are refused with domain.ErrPaperOnly.
	Paper bool
	// AllowLiveClose permits reduce-only close orders against the live
	// account.
	AllowLiveClose bool
	// AllowLiveTradingStop permits stop-loss/take-profit updates against the
	// live account.
	AllowLiveTradingStop bool
}

// PositionService owns operator actions on ledger rows: manual entries,
// closes, and stop level edits. Venue-backed rows round-trip through the
// backend before the local ledger is touched.
type PositionService struct {
	cfg       PositionServiceConfig
	ledger    *ledger.Ledger
	overrides domain.OverrideStore
	venue     ClosingVenue
	prices    QuoteSource
	catalog   SymbolCatalog
	journal   domain.TradeJournal
	audit     domain.AuditStore
	bus       domain.SignalBus
	notifier  *notify.Notifier
	logger    *slog.Logger

	mu        sync.Mutex
	coolUntil map[string]time.Time
	now       func() time.Time
}

// NewPositionService creates a PositionService. overrides, prices, catalog,
// journal, audit, bus and notifier may each be nil.
func NewPositionService(
	cfg PositionServiceConfig,
	lg *ledger.Ledger,
	overrides domain.OverrideStore,
	venue ClosingVenue,
	prices QuoteSource,
	catalog SymbolCatalog,
	journal domain.TradeJournal,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		cfg:       cfg,
		ledger:    lg,
		overrides: overrides,
		venue:     venue,
		prices:    prices,
		catalog:   catalog,
		journal:   journal,
		audit:     audit,
		bus:       bus,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "position_service")),
		coolUntil: make(map[string]time.Time),
		now:       time.Now,
	}
}

// AddManual inserts an operator-entered position and returns the stored row.
// When a backend symbol catalog is loaded, symbols outside it are rejected.
func (s *PositionService) AddManual(ctx context.Context, p domain.Position) (domain.Position, error) {
	canonical := domain.NormalizeSymbol(p.Symbol)
	if canonical == "" {
		return domain.Position{}, fmt.Errorf("position_service: %w: %q", domain.ErrInvalidSymbol, p.Symbol)
	}
	if p.Side != domain.SideLong && p.Side != domain.SideShort {
		return domain.Position{}, fmt.Errorf("position_service: invalid side %q", p.Side)
	}
	if s.catalog != nil && s.catalog.Len() > 0 && !s.catalog.Contains(canonical) {
		return domain.Position{}, fmt.Errorf("position_service: symbol %q not in backend catalog: %w", canonical, domain.ErrInvalidSymbol)
	}

	key := s.ledger.AddManual(p)
	stored, _ := s.ledger.Get(key)

	s.auditLog(ctx, "position.manual_add", map[string]any{
		"key":    key,
		"symbol": stored.Symbol,
		"side":   string(stored.Side),
		"size":   stored.Size,
	})
	s.publishPositions(ctx)
	return stored, nil
}

// Close flattens one ledger row. Manual rows realize their PnL at the latest
// mark price; signal rows are a local dismissal; paper rows round-trip
// through the simulator; live rows place a guarded reduce-only order first.
func (s *PositionService) Close(ctx context.Context, key string) error {
	pos, ok := s.ledger.Get(key)
	if !ok {
		return fmt.Errorf("position_service: close %q: %w", key, domain.ErrNotFound)
	}

	switch pos.Source {
	case domain.SourceManual:
		price, err := s.markPrice(ctx, pos)
		if err != nil {
			return fmt.Errorf("position_service: close %q: %w", key, err)
		}
		pos.LastPrice = price
		pos.PnL = domain.DerivedPnL(pos.Side, pos.EntryPrice, price, pos.Size)

	case domain.SourceSignal:
		// Nothing to unwind at the venue.

	case domain.SourcePaper:
		tradeID := strings.TrimPrefix(key, domain.KeyPrefix(domain.SourcePaper))
		if err := s.venue.PaperClose(ctx, tradeID); err != nil {
			return fmt.Errorf("position_service: paper close %q: %w", key, err)
		}

	case domain.SourceBybit:
		if s.cfg.Paper {
			return fmt.Errorf("position_service: close %q: %w", key, domain.ErrPaperOnly)
		}
		if !s.cfg.AllowLiveClose {
			return fmt.Errorf("position_service: close %q: live close is disabled", key)
		}
		order := domain.OrderRequest{
			ID:         uuid.NewString(),
			TradeNo:    pos.TradeNo,
			Symbol:     pos.Symbol,
			Side:       pos.Side.Opposite(),
			Size:       pos.Size,
			Leverage:   pos.Leverage,
			ReduceOnly: true,
		}
		if err := s.venue.PlaceOrder(ctx, order); err != nil {
			return fmt.Errorf("position_service: live close %q: %w", key, err)
		}

	default:
		return fmt.Errorf("position_service: close %q: unknown source %q", key, pos.Source)
	}

	s.ledger.Remove(key)
	if s.overrides != nil {
		if err := s.overrides.DeleteOverride(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to delete persisted override",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	s.journalClose(ctx, pos)
	s.auditLog(ctx, "position.close", map[string]any{
		"key":    key,
		"source": string(pos.Source),
		"symbol": pos.Symbol,
	})
	s.publishPositions(ctx)

	if s.notifier != nil {
		msg := fmt.Sprintf("%s %s %s (pnl %.2f)", pos.Source, pos.Side, pos.Symbol, pos.PnL)
		_ = s.notifier.Notify(ctx, "position_closed", "Position closed", msg)
	}
	return nil
}

// EditStops sets or clears a row's stop-loss and take-profit. Non-positive
// and non-finite levels clear the corresponding stop. Live rows round-trip
// through the venue before the ledger override is applied.
func (s *PositionService) EditStops(ctx context.Context, key string, stopLoss, takeProfit *float64) (domain.Position, error) {
	pos, ok := s.ledger.Get(key)
	if !ok {
		return domain.Position{}, fmt.Errorf("position_service: edit stops %q: %w", key, domain.ErrNotFound)
	}

	ov := domain.Override{
		StopLoss:   sanitizeStop(stopLoss),
		TakeProfit: sanitizeStop(takeProfit),
	}

	if pos.Source == domain.SourceBybit {
		if s.cfg.Paper {
			return domain.Position{}, fmt.Errorf("position_service: edit stops %q: %w", key, domain.ErrPaperOnly)
		}
		if !s.cfg.AllowLiveTradingStop {
			return domain.Position{}, fmt.Errorf("position_service: edit stops %q: live trading-stop is disabled", key)
		}
		if s.cooling(pos.Symbol) {
			return domain.Position{}, fmt.Errorf("position_service: edit stops %q: %w", key, domain.ErrVenueCooldown)
		}
		if err := s.venue.TradingStop(ctx, pos.Symbol, pos.Side, ov.StopLoss, ov.TakeProfit); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.startCooldown(pos.Symbol)
				s.logger.WarnContext(ctx, "venue does not know symbol, cooling trading-stop calls",
					slog.String("symbol", pos.Symbol),
					slog.Duration("cooldown", stopCooldown),
				)
			}
			return domain.Position{}, fmt.Errorf("position_service: venue trading stop %q: %w", key, err)
		}
	}

	updated, ok := s.ledger.SetOverride(key, ov)
	if !ok {
		return domain.Position{}, fmt.Errorf("position_service: edit stops %q: %w", key, domain.ErrNotFound)
	}

	if s.overrides != nil {
		var err error
		if ov.IsZero() {
			err = s.overrides.DeleteOverride(ctx, key)
		} else {
			err = s.overrides.SetOverride(ctx, key, ov)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to persist override",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	s.auditLog(ctx, "position.edit_stops", map[string]any{
		"key":         key,
		"stop_loss":   ov.StopLoss,
		"take_profit": ov.TakeProfit,
	})
	s.publishPositions(ctx)

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, "stops_updated", "Stops updated",
			fmt.Sprintf("%s %s", updated.Symbol, key))
	}
	return updated, nil
}

// Snapshot returns the current ledger rows.
func (s *PositionService) Snapshot() []domain.Position {
	return s.ledger.Snapshot()
}

// markPrice resolves the mark price to close a local row at: the row's own
// last price, the price cache, then one forced refresh. With no price
// available the close is refused so the row is not dropped at a stale or
// unknown level.
func (s *PositionService) markPrice(ctx context.Context, pos domain.Position) (float64, error) {
	if pos.LastPrice > 0 {
		return pos.LastPrice, nil
	}
	if s.prices == nil {
		return 0, fmt.Errorf("no mark price for %q: %w", pos.Symbol, domain.ErrNotFound)
	}
	if price, ok := s.cachedPrice(ctx, pos.Symbol); ok {
		return price, nil
	}
	if _, err := s.prices.RefreshAll(ctx); err != nil {
		return 0, fmt.Errorf("refresh prices: %w", err)
	}
	if price, ok := s.cachedPrice(ctx, pos.Symbol); ok {
		return price, nil
	}
	return 0, fmt.Errorf("no mark price for %q: %w", pos.Symbol, domain.ErrNotFound)
}

func (s *PositionService) cachedPrice(ctx context.Context, symbol string) (float64, bool) {
	prices, err := s.prices.Prices(ctx, []string{symbol})
	if err != nil {
		return 0, false
	}
	price, ok := prices[domain.NormalizeSymbol(symbol)]
	return price, ok && price > 0
}

func (s *PositionService) cooling(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.coolUntil[symbol]
	return ok && s.now().Before(until)
}

func (s *PositionService) startCooldown(symbol string) {
	s.mu.Lock()
	s.coolUntil[symbol] = s.now().Add(stopCooldown)
	s.mu.Unlock()
}

func (s *PositionService) journalClose(ctx context.Context, pos domain.Position) {
	if s.journal == nil {
		return
	}
	rec := domain.TradeRecord{
		ID:        uuid.NewString(),
		TradeNo:   pos.TradeNo,
		Source:    pos.Source,
		Symbol:    pos.Symbol,
		Side:      pos.Side,
		Size:      pos.Size,
		Leverage:  pos.Leverage,
		Price:     pos.LastPrice,
		Status:    "closed",
		Paper:     pos.Source == domain.SourcePaper,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.journal.Insert(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to journal close",
			slog.String("key", pos.Key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PositionService) auditLog(ctx context.Context, event string, payload map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, payload); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PositionService) publishPositions(ctx context.Context) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event": "positions_changed",
		"count": s.ledger.Len(),
	})
	if err := s.bus.Publish(ctx, "positions", evt); err != nil {
		s.logger.WarnContext(ctx, "publish positions event failed",
			slog.String("error", err.Error()),
		)
	}
}

// sanitizeStop drops non-finite and non-positive levels, treating them as
// "clear this stop".
func sanitizeStop(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
