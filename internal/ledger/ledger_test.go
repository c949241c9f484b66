package ledger

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

func newTestLedger() *Ledger {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fptr(v float64) *float64 { return &v }

func TestAddManualAssignsSequentialKeys(t *testing.T) {
	l := newTestLedger()

	k1 := l.AddManual(domain.Position{Symbol: "btc", Side: domain.SideLong, Size: 100, Leverage: 5})
	k2 := l.AddManual(domain.Position{Symbol: "ETHUSDT", Side: domain.SideShort, Size: 50, Leverage: 2})

	assert.Equal(t, "manual:M1", k1)
	assert.Equal(t, "manual:M2", k2)

	p1, ok := l.Get(k1)
	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", p1.Symbol)
	assert.Equal(t, domain.SourceManual, p1.Source)
	assert.Equal(t, domain.StatusTaken, p1.Status)
	// Manual rows carry notional size: margin is size over leverage.
	assert.InDelta(t, 20, p1.Margin, 1e-9)

	p2, ok := l.Get(k2)
	require.True(t, ok)
	assert.Equal(t, "ETH/USDT", p2.Symbol)
}

func TestSyncSourceFullReplacement(t *testing.T) {
	l := newTestLedger()

	added, removed := l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: domain.PaperKey("1"), Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100},
		{Key: domain.PaperKey("2"), Symbol: "ETH/USDT", Side: domain.SideShort, Size: 2, EntryPrice: 50},
	})
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 2, l.Len())

	// Second sync drops paper:1, keeps paper:2, adds paper:3.
	added, removed = l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: domain.PaperKey("2"), Symbol: "ETH/USDT", Side: domain.SideShort, Size: 2, EntryPrice: 50},
		{Key: domain.PaperKey("3"), Symbol: "SOL/USDT", Side: domain.SideLong, Size: 5, EntryPrice: 20},
	})
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	_, ok := l.Get(domain.PaperKey("1"))
	assert.False(t, ok)
	_, ok = l.Get(domain.PaperKey("3"))
	assert.True(t, ok)
}

func TestUpsertKeepsOmittedSignalRows(t *testing.T) {
	l := newTestLedger()

	// A taken signal lands, then a later batch only mentions a different
	// trade. The first row is client-owned and must survive untouched.
	isNew := l.Upsert(domain.Position{
		Key: domain.SignalKey("T1"), Source: domain.SourceSignal,
		Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, EntryPrice: 100, LastPrice: 101,
	})
	assert.True(t, isNew)

	isNew = l.Upsert(domain.Position{
		Key: domain.SignalKey("T2"), Source: domain.SourceSignal,
		Symbol: "ETH/USDT", Side: domain.SideShort, Size: 50, EntryPrice: 2000,
	})
	assert.True(t, isNew)
	assert.Equal(t, 2, l.Len())

	_, ok := l.Get(domain.SignalKey("T1"))
	assert.True(t, ok, "a batch that omits an open trade must not remove it")

	// Removal happens only on an explicit terminal event.
	_, ok = l.Remove(domain.SignalKey("T1"))
	require.True(t, ok)
	assert.Equal(t, 1, l.Len())
}

func TestUpsertCarriesForwardLastPrice(t *testing.T) {
	l := newTestLedger()
	key := domain.SignalKey("T7")

	l.Upsert(domain.Position{Key: key, Source: domain.SourceSignal,
		Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, EntryPrice: 100, LastPrice: 102})
	l.Upsert(domain.Position{Key: key, Source: domain.SourceSignal,
		Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, EntryPrice: 100})

	p, ok := l.Get(key)
	require.True(t, ok)
	assert.Equal(t, 102.0, p.LastPrice)
}

func TestUpsertReappliesStoredOverride(t *testing.T) {
	l := newTestLedger()
	key := domain.SignalKey("T3")

	l.Upsert(domain.Position{Key: key, Source: domain.SourceSignal,
		Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, EntryPrice: 100})
	_, ok := l.SetOverride(key, domain.Override{StopLoss: fptr(95)})
	require.True(t, ok)

	l.Upsert(domain.Position{Key: key, Source: domain.SourceSignal,
		Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, EntryPrice: 100})

	p, _ := l.Get(key)
	require.NotNil(t, p.StopLoss)
	assert.Equal(t, 95.0, *p.StopLoss)
}

func TestSyncSourceLeavesOtherSourcesAlone(t *testing.T) {
	l := newTestLedger()
	l.AddManual(domain.Position{Symbol: "BTC", Side: domain.SideLong, Size: 100, Leverage: 1})
	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: domain.BybitKey("BTC/USDT", domain.SideLong), Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1},
	})

	l.SyncSource(domain.SourcePaper, nil)

	assert.Equal(t, 2, l.Len(), "manual and bybit rows must survive a paper sync")
}

func TestSyncSourcePreservesOverrides(t *testing.T) {
	l := newTestLedger()
	key := domain.PaperKey("7")

	l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100},
	})

	_, ok := l.SetOverride(key, domain.Override{StopLoss: fptr(90), TakeProfit: fptr(130)})
	require.True(t, ok)

	// Full re-sync with a row that carries no stops.
	l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100},
	})

	p, ok := l.Get(key)
	require.True(t, ok)
	require.NotNil(t, p.StopLoss)
	require.NotNil(t, p.TakeProfit)
	assert.Equal(t, 90.0, *p.StopLoss)
	assert.Equal(t, 130.0, *p.TakeProfit)
}

func TestRestoreOverridesAppliesOnNextSync(t *testing.T) {
	l := newTestLedger()
	key := domain.BybitKey("ETH/USDT", domain.SideShort)

	l.RestoreOverrides(map[string]domain.Override{
		key: {StopLoss: fptr(2100)},
	})

	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: key, Symbol: "ETH/USDT", Side: domain.SideShort, Size: 1, EntryPrice: 2000},
	})

	p, ok := l.Get(key)
	require.True(t, ok)
	require.NotNil(t, p.StopLoss)
	assert.Equal(t, 2100.0, *p.StopLoss)
	assert.Nil(t, p.TakeProfit)
}

func TestApplyPricesRecomputesDerivedFields(t *testing.T) {
	l := newTestLedger()

	longKey := domain.BybitKey("BTC/USDT", domain.SideLong)
	shortKey := domain.BybitKey("BTC/USDT", domain.SideShort)
	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: longKey, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 100, Leverage: 5, EntryPrice: 100},
		{Key: shortKey, Symbol: "BTC/USDT", Side: domain.SideShort, Size: 100, Leverage: 5, EntryPrice: 100},
	})

	touched := l.ApplyPrices(map[string]float64{"BTC/USDT": 105})
	assert.Equal(t, 2, touched)

	long, _ := l.Get(longKey)
	assert.InDelta(t, 0.05, long.RetPct, 1e-9)
	assert.InDelta(t, 5, long.PnL, 1e-9)

	short, _ := l.Get(shortKey)
	assert.InDelta(t, -0.05, short.RetPct, 1e-9)
	assert.InDelta(t, -5, short.PnL, 1e-9)
}

func TestApplyPricesMarginDerivation(t *testing.T) {
	l := newTestLedger()
	key := domain.BybitKey("BTC/USDT", domain.SideLong)
	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 10, Leverage: 5, EntryPrice: 95},
	})

	l.ApplyPrices(map[string]float64{"BTC/USDT": 100})

	p, _ := l.Get(key)
	assert.InDelta(t, 200, p.Margin, 1e-9, "10 units at 100 with 5x leverage")
}

func TestReportedFiguresWinOverDerivation(t *testing.T) {
	l := newTestLedger()
	key := domain.BybitKey("BTC/USDT", domain.SideLong)

	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong,
			Size: 10, Leverage: 5, EntryPrice: 100, LastPrice: 105,
			ReportedPnL: fptr(42.5), ReportedMargin: fptr(333)},
	})

	p, _ := l.Get(key)
	assert.Equal(t, 42.5, p.PnL, "the exchange's unrealized pnl wins over derivation")
	assert.Equal(t, 333.0, p.Margin)

	// A fresh quote re-derives ret pct but still keeps the reported pnl.
	l.ApplyPrices(map[string]float64{"BTC/USDT": 110})
	p, _ = l.Get(key)
	assert.Equal(t, 42.5, p.PnL)
	assert.InDelta(t, 0.10, p.RetPct, 1e-9)
}

func TestApplyPricesRejectsBadQuotes(t *testing.T) {
	l := newTestLedger()
	key := domain.BybitKey("BTC/USDT", domain.SideLong)
	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100, LastPrice: 101},
	})

	for _, bad := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		touched := l.ApplyPrices(map[string]float64{"BTC/USDT": bad})
		assert.Zero(t, touched, "quote %v must be ignored", bad)
	}

	p, _ := l.Get(key)
	assert.Equal(t, 101.0, p.LastPrice)
}

func TestRemoveDropsOverrideToo(t *testing.T) {
	l := newTestLedger()
	key := domain.PaperKey("9")
	l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100},
	})
	l.SetOverride(key, domain.Override{StopLoss: fptr(90)})

	p, ok := l.Remove(key)
	require.True(t, ok)
	assert.Equal(t, key, p.Key)

	// Re-sync: the old override must not resurface.
	l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: key, Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1, EntryPrice: 100},
	})
	p, _ = l.Get(key)
	assert.Nil(t, p.StopLoss)
}

func TestClearSource(t *testing.T) {
	l := newTestLedger()
	l.SyncSource(domain.SourcePaper, []domain.Position{
		{Key: domain.PaperKey("1"), Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1},
		{Key: domain.PaperKey("2"), Symbol: "ETH/USDT", Side: domain.SideLong, Size: 1},
	})
	l.AddManual(domain.Position{Symbol: "SOL", Side: domain.SideLong, Size: 10, Leverage: 1})

	n := l.ClearSource(domain.SourcePaper)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, l.Len())
}

func TestSymbolsAndSnapshotOrdering(t *testing.T) {
	l := newTestLedger()
	l.SyncSource(domain.SourceBybit, []domain.Position{
		{Key: domain.BybitKey("ETH/USDT", domain.SideLong), Symbol: "ETH/USDT", Side: domain.SideLong, Size: 1},
		{Key: domain.BybitKey("BTC/USDT", domain.SideLong), Symbol: "BTC/USDT", Side: domain.SideLong, Size: 1},
		{Key: domain.BybitKey("BTC/USDT", domain.SideShort), Symbol: "BTC/USDT", Side: domain.SideShort, Size: 1},
	})

	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, l.Symbols())

	snap := l.Snapshot()
	require.Len(t, snap, 3)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Key, snap[i].Key)
	}
}
