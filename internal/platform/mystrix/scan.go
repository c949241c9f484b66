package mystrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Scan runs one divergence scan over the given symbol set and returns the
// batch together with the backend heartbeat and scan counter. Symbols go on
// the wire in the venue's slash-free form.
func (c *Client) Scan(ctx context.Context, symbols []string) (domain.ScanBatch, error) {
	req := scanRequest{
		Symbols:   make([]string, 0, len(symbols)),
		Threshold: c.scanThreshold,
		MaxEvents: c.scanMaxEvents,
	}
	for _, s := range symbols {
		req.Symbols = append(req.Symbols, domain.VenueSymbol(s))
	}

	body, err := c.doPost(ctx, "/live/scan", req)
	if err != nil {
		return domain.ScanBatch{}, fmt.Errorf("mystrix: scan: %w", err)
	}

	var resp scanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.ScanBatch{}, fmt.Errorf("mystrix: decode scan: %w", err)
	}

	batch := domain.ScanBatch{
		ScanCount: resp.ScanCount,
		Symbols:   resp.Symbols,
		Events:    resp.Events,
	}
	if resp.Heartbeat != "" {
		if ts, err := time.Parse(time.RFC3339, resp.Heartbeat); err == nil {
			batch.Heartbeat = ts
		}
	}
	return batch, nil
}

// Prices fetches the latest quotes for a batch of canonical symbols in one
// call. A 404 maps to domain.ErrNotFound, meaning the backend build does not
// ship the price feed at all; callers should cool the endpoint down.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	body, err := c.doPost(ctx, "/market/prices", pricesRequest{Symbols: symbols})
	if err != nil {
		return nil, fmt.Errorf("mystrix: prices: %w", err)
	}

	var resp pricesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mystrix: decode prices: %w", err)
	}
	return resp.Prices, nil
}

// Universe fetches the backend's suggested symbol universe, capped at limit
// entries.
func (c *Client) Universe(ctx context.Context, limit int) ([]Suggestion, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "/universe/suggestions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("mystrix: universe: %w", err)
	}

	var resp universeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mystrix: decode universe: %w", err)
	}
	return resp.Suggestions, nil
}

// Symbols fetches the tradable symbol catalog.
func (c *Client) Symbols(ctx context.Context) ([]string, error) {
	body, err := c.doGet(ctx, "/symbols")
	if err != nil {
		return nil, fmt.Errorf("mystrix: symbols: %w", err)
	}

	var resp symbolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mystrix: decode symbols: %w", err)
	}
	return resp.Symbols, nil
}

// DemoTrade asks the backend to run a short self-test trade through the
// paper simulator.
func (c *Client) DemoTrade(ctx context.Context) error {
	if _, err := c.doPost(ctx, "/live/demo_trade", nil); err != nil {
		return fmt.Errorf("mystrix: demo trade: %w", err)
	}
	return nil
}
