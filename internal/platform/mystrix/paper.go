package mystrix

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// PaperInit resets the paper simulator to a fresh account with the given
// starting balance.
func (c *Client) PaperInit(ctx context.Context, balance float64) error {
	payload := map[string]float64{"balance": balance}
	if _, err := c.doPost(ctx, "/paper/init", payload); err != nil {
		return fmt.Errorf("mystrix: paper init: %w", err)
	}
	return nil
}

// PaperTick advances the paper simulator one step so fills and liquidations
// are applied before balance and positions are read.
func (c *Client) PaperTick(ctx context.Context) error {
	if _, err := c.doPost(ctx, "/paper/tick", nil); err != nil {
		return fmt.Errorf("mystrix: paper tick: %w", err)
	}
	return nil
}

// PaperBalance reads the simulator account balance.
func (c *Client) PaperBalance(ctx context.Context) (float64, error) {
	body, err := c.doGet(ctx, "/paper/balance")
	if err != nil {
		return 0, fmt.Errorf("mystrix: paper balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("mystrix: decode paper balance: %w", err)
	}
	return resp.Balance, nil
}

// PaperPositions reads the simulator's open positions.
func (c *Client) PaperPositions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.doGet(ctx, "/paper/positions")
	if err != nil {
		return nil, fmt.Errorf("mystrix: paper positions: %w", err)
	}

	var resp positionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mystrix: decode paper positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(resp.Positions))
	for i := range resp.Positions {
		positions = append(positions, resp.Positions[i].ToDomain(domain.SourcePaper))
	}
	return positions, nil
}

// PaperClose closes one simulator position by trade ID.
func (c *Client) PaperClose(ctx context.Context, tradeID string) error {
	payload := map[string]string{"trade_id": tradeID}
	if _, err := c.doPost(ctx, "/paper/close", payload); err != nil {
		return fmt.Errorf("mystrix: paper close %s: %w", tradeID, err)
	}
	return nil
}

// PaperOrder places a market order in the paper simulator.
func (c *Client) PaperOrder(ctx context.Context, ord domain.OrderRequest) error {
	payload := orderRequest{
		Symbol:   domain.VenueSymbol(ord.Symbol),
		Side:     string(ord.Side),
		Size:     ord.Size,
		Leverage: ord.Leverage,
	}
	if _, err := c.doPost(ctx, "/paper/order", payload); err != nil {
		return fmt.Errorf("mystrix: paper order %s: %w", ord.Symbol, err)
	}
	return nil
}

// PaperDemoTrade runs the simulator self-test trade. The caller usually
// bounds this with a short deadline.
func (c *Client) PaperDemoTrade(ctx context.Context) error {
	if _, err := c.doPost(ctx, "/paper/demo_trade", nil); err != nil {
		return fmt.Errorf("mystrix: paper demo trade: %w", err)
	}
	return nil
}
