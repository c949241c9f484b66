package mystrix

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

func (c *Client) credsOrNil() *Credentials {
	if c.creds.ApiKey == "" {
		return nil
	}
	creds := c.creds
	return &creds
}

// Balance reads the live exchange account balance through the autotrader.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.doGet(ctx, "/autotrader/balance")
	if err != nil {
		return 0, fmt.Errorf("mystrix: autotrader balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("mystrix: decode autotrader balance: %w", err)
	}
	return resp.Balance, nil
}

// Positions reads the open live exchange positions.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.doGet(ctx, "/autotrader/positions")
	if err != nil {
		return nil, fmt.Errorf("mystrix: autotrader positions: %w", err)
	}

	var resp positionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mystrix: decode autotrader positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(resp.Positions))
	for i := range resp.Positions {
		positions = append(positions, resp.Positions[i].ToDomain(domain.SourceBybit))
	}
	return positions, nil
}

// PlaceOrder submits a market order against the live exchange account.
func (c *Client) PlaceOrder(ctx context.Context, ord domain.OrderRequest) error {
	payload := orderRequest{
		Symbol:     domain.VenueSymbol(ord.Symbol),
		Side:       string(ord.Side),
		Size:       ord.Size,
		Leverage:   ord.Leverage,
		ReduceOnly: ord.ReduceOnly,
		Creds:      c.credsOrNil(),
	}
	if _, err := c.doPost(ctx, "/autotrader/order", payload); err != nil {
		return fmt.Errorf("mystrix: autotrader order %s: %w", ord.Symbol, err)
	}
	return nil
}

// TradingStop updates exchange-side stop-loss / take-profit for an open
// position. A nil level clears the corresponding stop on the exchange.
// Returns domain.ErrNotFound when the backend build lacks the endpoint, so
// callers can start a cooldown instead of hammering it.
func (c *Client) TradingStop(ctx context.Context, symbol string, side domain.Side, stopLoss, takeProfit *float64) error {
	payload := tradingStopRequest{
		Symbol:     domain.VenueSymbol(symbol),
		Side:       string(side),
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Creds:      c.credsOrNil(),
	}
	if _, err := c.doPost(ctx, "/autotrader/trading_stop", payload); err != nil {
		return fmt.Errorf("mystrix: trading stop %s: %w", symbol, err)
	}
	return nil
}

// AutotraderDemoTrade runs a small fixed-size live self-test trade that the
// backend auto-closes after a short hold.
func (c *Client) AutotraderDemoTrade(ctx context.Context) error {
	payload := map[string]any{"credentials": c.credsOrNil()}
	if _, err := c.doPost(ctx, "/autotrader/demo_trade", payload); err != nil {
		return fmt.Errorf("mystrix: autotrader demo trade: %w", err)
	}
	return nil
}
