package mystrix

import (
	"math"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// APIPosition is the wire form of a backend position row, shared by the
// paper simulator and the autotrader endpoints. Unrealized PnL and margin
// are what the exchange reports; the ledger derives them only when absent.
type APIPosition struct {
	TradeID       string   `json:"trade_id"`
	TradeNo       string   `json:"trade_no"`
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`
	Size          float64  `json:"size"`
	Leverage      float64  `json:"leverage"`
	EntryPrice    float64  `json:"entry_price"`
	LastPrice     float64  `json:"last_price"`
	UnrealizedPnL *float64 `json:"unrealized_pnl"`
	Margin        *float64 `json:"margin"`
	StopLoss      *float64 `json:"stop_loss"`
	TakeProfit    *float64 `json:"take_profit"`
	Status        string   `json:"status"`
	OpenedAt      string   `json:"opened_at"`
	EntryTime     string   `json:"entry_time"`
}

// ToDomain converts a wire position into a ledger entry belonging to the
// given source. The ledger key follows the source's prefix convention.
func (p APIPosition) ToDomain(src domain.Source) domain.Position {
	side := domain.SideLong
	if p.Side == "short" || p.Side == "sell" {
		side = domain.SideShort
	}

	symbol := domain.NormalizeSymbol(p.Symbol)

	var key string
	switch src {
	case domain.SourcePaper:
		key = domain.PaperKey(p.TradeID)
	case domain.SourceBybit:
		key = domain.BybitKey(symbol, side)
	default:
		key = domain.SignalKey(p.TradeNo)
	}

	// The positions endpoints stamp opened_at; older paper builds used
	// entry_time.
	entryTime := parseWireTime(p.OpenedAt)
	if entryTime.IsZero() {
		entryTime = parseWireTime(p.EntryTime)
	}

	var reportedMargin *float64
	if m := finiteOrNil(p.Margin); m != nil && *m > 0 {
		reportedMargin = m
	}

	return domain.Position{
		Key:            key,
		Source:         src,
		Symbol:         symbol,
		Side:           side,
		Size:           p.Size,
		Leverage:       p.Leverage,
		EntryPrice:     p.EntryPrice,
		LastPrice:      p.LastPrice,
		ReportedPnL:    finiteOrNil(p.UnrealizedPnL),
		ReportedMargin: reportedMargin,
		StopLoss:       finiteOrNil(p.StopLoss),
		TakeProfit:     finiteOrNil(p.TakeProfit),
		Status:         p.Status,
		TradeNo:        p.TradeNo,
		EntryTime:      entryTime,
	}
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Time{}
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return v
}

// scanRequest drives one divergence scan pass.
type scanRequest struct {
	Symbols     []string `json:"symbols"`
	DatasetPath string   `json:"dataset_path,omitempty"`
	ModelPath   string   `json:"model_path,omitempty"`
	Threshold   float64  `json:"threshold"`
	MaxEvents   int      `json:"max_events"`
}

// scanResponse wraps the scanner batch plus the backend liveness fields.
type scanResponse struct {
	Heartbeat string             `json:"heartbeat"`
	ScanCount int64              `json:"scan_count"`
	Symbols   []string           `json:"symbols"`
	Events    []domain.ScanEvent `json:"events"`
}

// pricesRequest asks for a batch of quotes.
type pricesRequest struct {
	Symbols []string `json:"symbols"`
}

// pricesResponse maps symbol to latest price.
type pricesResponse struct {
	Prices map[string]float64 `json:"prices"`
}

// balanceResponse is shared by paper and autotrader balance endpoints.
type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// positionsResponse wraps a backend position list.
type positionsResponse struct {
	Positions []APIPosition `json:"positions"`
}

// Suggestion is one candidate from the universe scanner, ranked by recent
// range and move.
type Suggestion struct {
	Symbol    string  `json:"symbol"`
	RangePct  float64 `json:"range_pct"`
	ChangePct float64 `json:"change_pct"`
}

// universeResponse is the suggested-symbol list.
type universeResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// symbolsResponse is the tradable symbol catalog.
type symbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// tradingStopRequest updates exchange-side stop levels. Null levels clear
// the corresponding stop.
type tradingStopRequest struct {
	Symbol     string       `json:"symbol"`
	Side       string       `json:"side"`
	StopLoss   *float64     `json:"stop_loss"`
	TakeProfit *float64     `json:"take_profit"`
	Creds      *Credentials `json:"credentials,omitempty"`
}

// orderRequest places a market order through the autotrader.
type orderRequest struct {
	Symbol     string       `json:"symbol"`
	Side       string       `json:"side"`
	Size       float64      `json:"size"`
	Leverage   float64      `json:"leverage"`
	ReduceOnly bool         `json:"reduce_only,omitempty"`
	Creds      *Credentials `json:"credentials,omitempty"`
}
