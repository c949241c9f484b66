package domain

import (
	"fmt"
	"time"
)

// Source identifies which feed a ledger entry originated from. Each source
// owns a distinct key prefix so reconciliation can replace one source's rows
// without touching the others.
type Source string

const (
	SourceManual Source = "manual"
	SourcePaper  Source = "paper"
	SourceBybit  Source = "bybit"
	SourceSignal Source = "signal"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the reducing direction for closing a position.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Position is a single reconciled ledger entry. Size is the notional value
// in USDT; Margin and PnL are the resolved display values: server-supplied
// figures (ReportedMargin, ReportedPnL) win, and the ledger derives them from
// the latest cached price only when the source did not supply them.
type Position struct {
	Key            string    `json:"key"`
	Source         Source    `json:"source"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Size           float64   `json:"size"`
	Leverage       float64   `json:"leverage"`
	EntryPrice     float64   `json:"entry_price"`
	LastPrice      float64   `json:"last_price"`
	Margin         float64   `json:"margin"`
	PnL            float64   `json:"pnl"`
	RetPct         float64   `json:"ret_pct"`
	ReportedMargin *float64  `json:"-"`
	ReportedPnL    *float64  `json:"-"`
	StopLoss       *float64  `json:"stop_loss,omitempty"`
	TakeProfit     *float64  `json:"take_profit,omitempty"`
	Status         string    `json:"status"`
	TradeNo        string    `json:"trade_no,omitempty"`
	EntryTime      time.Time `json:"entry_time,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DerivedPnL computes unrealized PnL from the entry and mark price with the
// server's sign convention: positive means profitable for both directions.
// It returns 0 when either price is unknown.
func DerivedPnL(side Side, entry, last, size float64) float64 {
	if entry <= 0 || last <= 0 {
		return 0
	}
	var ret float64
	if side == SideShort {
		ret = (entry - last) / entry
	} else {
		ret = (last - entry) / entry
	}
	return ret * size
}

// Override carries operator-set stop levels that must survive a full
// source re-sync. A nil field means "no level set".
type Override struct {
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// IsZero reports whether the override carries no levels at all.
func (o Override) IsZero() bool {
	return o.StopLoss == nil && o.TakeProfit == nil
}

// Key constructors. The prefix before the first colon is the Source and is
// relied on by per-source reconciliation.

func ManualKey(seq int) string          { return fmt.Sprintf("manual:M%d", seq) }
func PaperKey(tradeID string) string    { return "paper:" + tradeID }
func SignalKey(tradeNo string) string   { return "signal:" + tradeNo }
func BybitKey(symbol string, side Side) string {
	return fmt.Sprintf("bybit:%s:%s", symbol, side)
}

// KeyPrefix returns the ledger key prefix owned by a source.
func KeyPrefix(src Source) string { return string(src) + ":" }
