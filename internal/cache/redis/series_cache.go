package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// SeriesCache implements domain.SeriesStore as one JSON blob per mode at key
// "pnl:series:{mode}". The series is small (capped at 160 samples) so a
// whole-blob write on every accepted sample is cheaper than list surgery.
type SeriesCache struct {
	rdb *redis.Client
}

// NewSeriesCache creates a SeriesCache backed by the given Client.
func NewSeriesCache(c *Client) *SeriesCache {
	return &SeriesCache{rdb: c.Underlying()}
}

func seriesKey(mode string) string {
	return "pnl:series:" + mode
}

// LoadSeries returns the persisted series for a mode, or an empty series
// when none has been recorded yet.
func (sc *SeriesCache) LoadSeries(ctx context.Context, mode string) (domain.PnLSeries, error) {
	raw, err := sc.rdb.Get(ctx, seriesKey(mode)).Bytes()
	if err == redis.Nil {
		return domain.PnLSeries{}, nil
	}
	if err != nil {
		return domain.PnLSeries{}, fmt.Errorf("redis: load series %s: %w", mode, err)
	}

	var series domain.PnLSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return domain.PnLSeries{}, fmt.Errorf("redis: decode series %s: %w", mode, err)
	}
	return series, nil
}

// SaveSeries replaces the persisted series for a mode.
func (sc *SeriesCache) SaveSeries(ctx context.Context, mode string, series domain.PnLSeries) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("redis: marshal series %s: %w", mode, err)
	}
	if err := sc.rdb.Set(ctx, seriesKey(mode), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save series %s: %w", mode, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SeriesStore = (*SeriesCache)(nil)
