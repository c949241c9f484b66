package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger() *ledger.Ledger {
	return ledger.New(testLogger())
}

func fptr(v float64) *float64 { return &v }

// memPriceCache is an in-memory domain.PriceCache.
type memPriceCache struct {
	mu     sync.Mutex
	prices map[string]float64
	times  map[string]time.Time
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{
		prices: make(map[string]float64),
		times:  make(map[string]time.Time),
	}
}

func (c *memPriceCache) SetPrice(_ context.Context, symbol string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
	c.times[symbol] = ts
	return nil
}

func (c *memPriceCache) GetPrice(_ context.Context, symbol string) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, c.times[symbol], nil
}

func (c *memPriceCache) GetPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := c.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

// memOverrideStore is an in-memory domain.OverrideStore.
type memOverrideStore struct {
	mu        sync.Mutex
	overrides map[string]domain.Override
}

func newMemOverrideStore() *memOverrideStore {
	return &memOverrideStore{overrides: make(map[string]domain.Override)}
}

func (s *memOverrideStore) SetOverride(_ context.Context, key string, ov domain.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key] = ov
	return nil
}

func (s *memOverrideStore) DeleteOverride(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides, key)
	return nil
}

func (s *memOverrideStore) ListOverrides(context.Context) (map[string]domain.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Override, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out, nil
}

// fakeFetcher answers batch Prices calls from a fixed table and counts them.
type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
	asked  []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{prices: make(map[string]float64)}
}

func (f *fakeFetcher) Prices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.asked = append([]string(nil), symbols...)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeQuotes is an in-memory QuoteSource. onRefresh entries become visible
// only after a RefreshAll call, mimicking a forced backend fetch.
type fakeQuotes struct {
	mu         sync.Mutex
	prices     map[string]float64
	onRefresh  map[string]float64
	refreshErr error
	refreshes  int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		prices:    make(map[string]float64),
		onRefresh: make(map[string]float64),
	}
}

func (q *fakeQuotes) Prices(_ context.Context, symbols []string) (map[string]float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]float64)
	for _, s := range symbols {
		if p, ok := q.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (q *fakeQuotes) RefreshAll(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refreshes++
	if q.refreshErr != nil {
		return 0, q.refreshErr
	}
	for s, p := range q.onRefresh {
		q.prices[s] = p
	}
	return len(q.onRefresh), nil
}

// memJournal is an in-memory domain.TradeJournal.
type memJournal struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (j *memJournal) Insert(_ context.Context, rec domain.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) UpdateStatus(context.Context, string, string) error { return nil }

func (j *memJournal) ListRecent(context.Context, int) ([]domain.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]domain.TradeRecord(nil), j.records...), nil
}

func (j *memJournal) ListBefore(context.Context, time.Time) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (j *memJournal) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

// fakeVenue covers the paper, live and closing venue slices.
type fakeVenue struct {
	mu            sync.Mutex
	paperBalance  float64
	paperPos      []domain.Position
	liveBalance   float64
	livePos       []domain.Position
	ticks         int
	paperClosed   []string
	orders        []domain.OrderRequest
	stops         []string
	orderErr      error
	tradingErr    error
	paperCloseErr error
}

func (v *fakeVenue) PaperTick(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ticks++
	return nil
}

func (v *fakeVenue) PaperBalance(context.Context) (float64, error) {
	return v.paperBalance, nil
}

func (v *fakeVenue) PaperPositions(context.Context) ([]domain.Position, error) {
	return v.paperPos, nil
}

func (v *fakeVenue) Balance(context.Context) (float64, error) {
	return v.liveBalance, nil
}

func (v *fakeVenue) Positions(context.Context) ([]domain.Position, error) {
	return v.livePos, nil
}

func (v *fakeVenue) PaperClose(_ context.Context, tradeID string) error {
	if v.paperCloseErr != nil {
		return v.paperCloseErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paperClosed = append(v.paperClosed, tradeID)
	return nil
}

func (v *fakeVenue) PlaceOrder(_ context.Context, ord domain.OrderRequest) error {
	if v.orderErr != nil {
		return v.orderErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = append(v.orders, ord)
	return nil
}

func (v *fakeVenue) TradingStop(_ context.Context, symbol string, _ domain.Side, _, _ *float64) error {
	if v.tradingErr != nil {
		return v.tradingErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stops = append(v.stops, symbol)
	return nil
}
