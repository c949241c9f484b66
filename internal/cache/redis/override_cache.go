package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// overridesKey is the single hash holding all stop overrides, keyed by
// ledger key. Kept in one hash so a restart can reload every override with
// one round trip.
const overridesKey = "ledger:overrides"

// OverrideCache implements domain.OverrideStore on a Redis hash. Overrides
// must outlive both process restarts and full source re-syncs, which is why
// they do not live inside the in-memory ledger alone.
type OverrideCache struct {
	rdb *redis.Client
}

// NewOverrideCache creates an OverrideCache backed by the given Client.
func NewOverrideCache(c *Client) *OverrideCache {
	return &OverrideCache{rdb: c.Underlying()}
}

// SetOverride stores (or replaces) the override for a ledger key. A zero
// override deletes the entry instead.
func (oc *OverrideCache) SetOverride(ctx context.Context, key string, ov domain.Override) error {
	if ov.IsZero() {
		return oc.DeleteOverride(ctx, key)
	}

	data, err := json.Marshal(ov)
	if err != nil {
		return fmt.Errorf("redis: marshal override %s: %w", key, err)
	}
	if err := oc.rdb.HSet(ctx, overridesKey, key, data).Err(); err != nil {
		return fmt.Errorf("redis: set override %s: %w", key, err)
	}
	return nil
}

// DeleteOverride removes the override for a ledger key. Deleting a missing
// override is not an error.
func (oc *OverrideCache) DeleteOverride(ctx context.Context, key string) error {
	if err := oc.rdb.HDel(ctx, overridesKey, key).Err(); err != nil {
		return fmt.Errorf("redis: delete override %s: %w", key, err)
	}
	return nil
}

// ListOverrides returns every stored override keyed by ledger key. Entries
// that fail to decode are skipped rather than failing the whole load.
func (oc *OverrideCache) ListOverrides(ctx context.Context) (map[string]domain.Override, error) {
	vals, err := oc.rdb.HGetAll(ctx, overridesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list overrides: %w", err)
	}

	out := make(map[string]domain.Override, len(vals))
	for key, raw := range vals {
		var ov domain.Override
		if err := json.Unmarshal([]byte(raw), &ov); err != nil {
			continue
		}
		out[key] = ov
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.OverrideStore = (*OverrideCache)(nil)
