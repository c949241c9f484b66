package autotrade

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

type fakePlacer struct {
	orders []domain.OrderRequest
	err    error
}

func (p *fakePlacer) PlaceOrder(_ context.Context, req domain.OrderRequest) error {
	if p.err != nil {
		return p.err
	}
	p.orders = append(p.orders, req)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entryEvent(tradeNo string, leverage float64) domain.ScanEvent {
	return domain.ScanEvent{
		TradeNo:  tradeNo,
		Symbol:   "BTCUSDT",
		Side:     domain.SideLong,
		Status:   domain.StatusTaken,
		Leverage: leverage,
	}
}

func TestRouteSizesFromRiskLadder(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	// Balance 100 sits on the 98..126 rung, risk 22.
	decision, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	require.NotNil(t, decision.Order)
	assert.Equal(t, 110.0, decision.Order.Size)
	assert.Equal(t, "BTC/USDT", decision.Order.Symbol)
	require.NotNil(t, decision.Level)
	assert.Equal(t, 7, *decision.Level)

	require.Len(t, placer.orders, 1)
}

func TestRouteClampsLeverageToOne(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	decision, err := r.Route(context.Background(), entryEvent("T1", 0), 100)
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	assert.Equal(t, 1.0, decision.Order.Leverage)
	assert.Equal(t, 22.0, decision.Order.Size)
}

func TestRoutePrefersConfiguredLeverage(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true, Leverage: 3}, placer, nil, nil, nil, testLogger())

	// The event claims 10x; the configured 3x wins for sizing and the order.
	decision, err := r.Route(context.Background(), entryEvent("T1", 10), 100)
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	assert.Equal(t, 3.0, decision.Order.Leverage)
	assert.Equal(t, 66.0, decision.Order.Size)
}

func TestRouteSideFollowsDivergence(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	ev := domain.ScanEvent{
		TradeNo:    "T5",
		Symbol:     "BTCUSDT",
		Divergence: domain.DivergenceBear,
		Status:     domain.StatusTaken,
		Leverage:   2,
	}
	decision, err := r.Route(context.Background(), ev, 100)
	require.NoError(t, err)
	require.True(t, decision.Accepted)
	assert.Equal(t, domain.SideShort, decision.Order.Side)
}

func TestRouteRejectsWhenDisabled(t *testing.T) {
	r := New(Config{Enabled: false}, &fakePlacer{}, nil, nil, nil, testLogger())

	decision, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	assert.ErrorIs(t, err, domain.ErrRouterOff)
	assert.False(t, decision.Accepted)
}

func TestRouteDeduplicatesTradeNumbers(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	_, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	require.NoError(t, err)

	decision, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	require.NoError(t, err)
	assert.False(t, decision.Accepted)
	assert.Equal(t, "already routed", decision.Reason)

	assert.Len(t, placer.orders, 1)
}

func TestRouteRejectsUnusableBalances(t *testing.T) {
	placer := &fakePlacer{}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	for _, balance := range []float64{0, -10} {
		decision, err := r.Route(context.Background(), entryEvent("T1", 5), balance)
		require.NoError(t, err)
		assert.False(t, decision.Accepted)
	}
	assert.Empty(t, placer.orders)
}

func TestRoutePropagatesPlacementFailure(t *testing.T) {
	placer := &fakePlacer{err: errors.New("venue down")}
	r := New(Config{Enabled: true}, placer, nil, nil, nil, testLogger())

	decision, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	assert.Error(t, err)
	assert.False(t, decision.Accepted)

	// A failed placement must not block a retry on the next batch.
	placer.err = nil
	decision, err = r.Route(context.Background(), entryEvent("T1", 5), 100)
	require.NoError(t, err)
	assert.True(t, decision.Accepted)
}

func TestSetEnabledTogglesRouting(t *testing.T) {
	r := New(Config{Enabled: false}, &fakePlacer{}, nil, nil, nil, testLogger())

	_, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	assert.ErrorIs(t, err, domain.ErrRouterOff)

	r.SetEnabled(true)
	decision, err := r.Route(context.Background(), entryEvent("T1", 5), 100)
	require.NoError(t, err)
	assert.True(t, decision.Accepted)
}
