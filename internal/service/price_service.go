// Package service holds the application services gluing the backend client,
// the caches and the position ledger together.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
)

// PriceFetcher is the slice of the backend client the price service needs.
type PriceFetcher interface {
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// PriceService validates quotes into the price cache and keeps the ledger's
// mark prices fresh. Backend fetches are rate-limited globally, and when the
// backend reports the price endpoint missing the whole endpoint enters a
// cooldown instead of being retried on every pass.
type PriceService struct {
	cache   domain.PriceCache
	ledger  *ledger.Ledger
	backend PriceFetcher
	bus     domain.SignalBus
	logger  *slog.Logger

	fetchInterval time.Duration
	cooldown      time.Duration

	mu        sync.Mutex
	lastFetch time.Time
	coolUntil time.Time
	warned    bool
	now       func() time.Time
}

// NewPriceService creates a PriceService. bus may be nil.
func NewPriceService(
	cache domain.PriceCache,
	lg *ledger.Ledger,
	backend PriceFetcher,
	bus domain.SignalBus,
	fetchInterval, cooldown time.Duration,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		cache:         cache,
		ledger:        lg,
		backend:       backend,
		bus:           bus,
		logger:        logger.With(slog.String("component", "price_service")),
		fetchInterval: fetchInterval,
		cooldown:      cooldown,
		now:           time.Now,
	}
}

// Ingest validates one quote and stores it in the price cache. Non-finite and
// non-positive prices are rejected with domain.ErrInvalidPrice.
func (s *PriceService) Ingest(ctx context.Context, symbol string, price float64, ts time.Time) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("price_service: quote %v for %q: %w", price, symbol, domain.ErrInvalidPrice)
	}

	canonical := domain.NormalizeSymbol(symbol)
	if canonical == "" {
		return fmt.Errorf("price_service: %w: %q", domain.ErrInvalidSymbol, symbol)
	}

	if err := s.cache.SetPrice(ctx, canonical, price, ts); err != nil {
		return fmt.Errorf("price_service: set price for %q: %w", canonical, err)
	}

	s.publish(ctx, canonical, price, ts)
	return nil
}

// RefreshAll fetches fresh quotes for every symbol the ledger holds in one
// batch and reapplies the cached prices to the ledger. It returns how many
// ledger entries were re-marked.
func (s *PriceService) RefreshAll(ctx context.Context) (int, error) {
	symbols := s.ledger.Symbols()
	if len(symbols) == 0 {
		return 0, nil
	}

	if s.shouldFetch() {
		s.fetchBatch(ctx, symbols)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}

	prices, err := s.cache.GetPrices(ctx, symbols)
	if err != nil {
		return 0, fmt.Errorf("price_service: load cached prices: %w", err)
	}

	return s.ledger.ApplyPrices(prices), nil
}

// Prices returns the latest cached prices for the given symbols. Missing
// symbols are omitted.
func (s *PriceService) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices, err := s.cache.GetPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("price_service: get prices: %w", err)
	}
	return prices, nil
}

// shouldFetch applies the global rate limit and the endpoint cooldown.
func (s *PriceService) shouldFetch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Before(s.coolUntil) {
		return false
	}
	if !s.lastFetch.IsZero() && now.Sub(s.lastFetch) < s.fetchInterval {
		return false
	}
	s.lastFetch = now
	return true
}

func (s *PriceService) fetchBatch(ctx context.Context, symbols []string) {
	prices, err := s.backend.Prices(ctx, symbols)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Backend without the price endpoint: back off instead of
			// hammering it, and warn only the first time.
			s.mu.Lock()
			s.coolUntil = s.now().Add(s.cooldown)
			warned := s.warned
			s.warned = true
			s.mu.Unlock()
			if !warned {
				s.logger.WarnContext(ctx, "backend has no price endpoint, cooling down",
					slog.Duration("cooldown", s.cooldown),
				)
			}
			return
		}
		s.logger.WarnContext(ctx, "price fetch failed",
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.coolUntil = time.Time{}
	s.warned = false
	s.mu.Unlock()

	ts := s.now().UTC()
	for symbol, price := range prices {
		if err := s.Ingest(ctx, symbol, price, ts); err != nil {
			s.logger.WarnContext(ctx, "rejected backend quote",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *PriceService) publish(ctx context.Context, symbol string, price float64, ts time.Time) {
	if s.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":     "price",
		"symbol":    symbol,
		"price":     price,
		"timestamp": ts.Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, "prices", evt); err != nil {
		s.logger.WarnContext(ctx, "publish price event failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
}
