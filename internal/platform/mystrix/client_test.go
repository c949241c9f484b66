package mystrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

func TestScanPostsSymbolsAndDecodesBatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/live/scan", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"heartbeat":"2026-03-01T09:30:00Z","scan_count":17,"events":[
			{"trade_no":418276,"symbol":"BTC/USDT","divergence":"bull","status":"taken",
			 "entry_price":43000,"last_price":43100,"trade_size":120,"leverage":5,
			 "ml_confidence":0.74,"divergence_age_minutes":3.5}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second).WithScanParams(0.7, 5)
	batch, err := c.Scan(context.Background(), []string{"BTC/USDT", "ETH/USDT"})
	require.NoError(t, err)

	assert.Equal(t, []any{"BTCUSDT", "ETHUSDT"}, got["symbols"], "scan symbols use the slash-free form")
	assert.Equal(t, 0.7, got["threshold"])
	assert.Equal(t, float64(5), got["max_events"])

	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), batch.Heartbeat)
	assert.Equal(t, int64(17), batch.ScanCount)
	require.Len(t, batch.Events, 1)

	ev := batch.Events[0]
	assert.Equal(t, "418276", ev.TradeNo)
	assert.Equal(t, domain.SideLong, ev.SignalSide())
	assert.True(t, ev.IsEntry())
	assert.InDelta(t, 0.74, ev.MLConfidence, 1e-9)
	assert.Equal(t, 120.0, ev.Size)
	require.NotNil(t, ev.DivergenceAgeMin)
	assert.Equal(t, 3.5, *ev.DivergenceAgeMin)
}

func TestScanUsesDefaultParams(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"events":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Scan(context.Background(), []string{"BTC/USDT"})
	require.NoError(t, err)
	assert.Equal(t, 0.65, got["threshold"])
	assert.Equal(t, float64(3), got["max_events"])
}

func TestPricesPostsBatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/market/prices", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"prices":{"BTC/USDT":43210.5,"ETH/USDT":2310}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	prices, err := c.Prices(context.Background(), []string{"BTC/USDT", "ETH/USDT"})
	require.NoError(t, err)

	assert.Equal(t, []any{"BTC/USDT", "ETH/USDT"}, got["symbols"])
	assert.Equal(t, map[string]float64{"BTC/USDT": 43210.5, "ETH/USDT": 2310}, prices)
}

func TestPricesMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Prices(context.Background(), []string{"BTC/USDT"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrderSendsCredentials(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/autotrader/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second).WithCredentials(Credentials{ApiKey: "k", ApiSecret: "s"})
	err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		Symbol:   "ETH/USDT",
		Side:     domain.SideShort,
		Size:     50,
		Leverage: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", got["symbol"], "venue orders use the slash-free symbol form")
	assert.Equal(t, "short", got["side"])
	creds, ok := got["credentials"].(map[string]any)
	require.True(t, ok, "credentials must be forwarded in the body")
	assert.Equal(t, "k", creds["api_key"])
}

func TestAPIPositionCarriesReportedFigures(t *testing.T) {
	var pos APIPosition
	require.NoError(t, json.Unmarshal([]byte(`{
		"symbol":"BTCUSDT","side":"sell","size":1200,"leverage":3,
		"entry_price":43000,"last_price":42800,
		"unrealized_pnl":-18.4,"margin":400,
		"opened_at":"2026-02-28T21:15:00Z"
	}`), &pos))

	d := pos.ToDomain(domain.SourceBybit)
	assert.Equal(t, "BTC/USDT", d.Symbol)
	assert.Equal(t, domain.SideShort, d.Side)
	require.NotNil(t, d.ReportedPnL)
	assert.Equal(t, -18.4, *d.ReportedPnL)
	require.NotNil(t, d.ReportedMargin)
	assert.Equal(t, 400.0, *d.ReportedMargin)
	assert.Equal(t, time.Date(2026, 2, 28, 21, 15, 0, 0, time.UTC), d.EntryTime)
}

func TestAPIPositionFallsBackToEntryTime(t *testing.T) {
	pos := APIPosition{Symbol: "ETH/USDT", Side: "long", EntryTime: "2026-02-27T08:00:00Z"}
	d := pos.ToDomain(domain.SourcePaper)
	assert.Equal(t, time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC), d.EntryTime)
	assert.Nil(t, d.ReportedPnL)
	assert.Nil(t, d.ReportedMargin)
}

func TestPaperBalanceMissingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.PaperBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUniverseCapsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/universe/suggestions", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"suggestions":[
			{"symbol":"BTC/USDT","range_pct":4.2,"change_pct":1.1},
			{"symbol":"ETH/USDT","range_pct":6.8,"change_pct":-0.4}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	suggestions, err := c.Universe(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "BTC/USDT", suggestions[0].Symbol)
	assert.Equal(t, 4.2, suggestions[0].RangePct)
	assert.Equal(t, -0.4, suggestions[1].ChangePct)
}

func TestSymbolsFetchesCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/symbols", r.URL.Path)
		w.Write([]byte(`{"symbols":["BTC/USDT","ETH/USDT","SOL/USDT"]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	symbols, err := c.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, symbols)
}
