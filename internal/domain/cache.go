package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest validated prices, keyed by
// canonical symbol.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// OverrideStore persists operator stop-loss / take-profit overrides so they
// survive process restarts and full source re-syncs.
type OverrideStore interface {
	SetOverride(ctx context.Context, key string, ov Override) error
	DeleteOverride(ctx context.Context, key string) error
	ListOverrides(ctx context.Context) (map[string]Override, error)
}

// SeriesStore persists the per-mode PnL series between sessions.
type SeriesStore interface {
	LoadSeries(ctx context.Context, mode string) (PnLSeries, error)
	SaveSeries(ctx context.Context, mode string, series PnLSeries) error
}

// SignalBus provides pub/sub fan-out plus durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
