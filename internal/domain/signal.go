package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Statuses the backend scanner reports on a trade event. Only events in one
// of the live statuses are mirrored into the ledger; only entry statuses are
// eligible for auto-trade routing.
const (
	StatusTaken      = "taken"
	StatusClosed     = "closed"
	StatusDemoClosed = "demo_closed"
	StatusCompleted  = "completed"
)

// liveStatuses is the set of scanner statuses worth showing at all.
var liveStatuses = map[string]bool{
	StatusTaken:      true,
	StatusClosed:     true,
	StatusDemoClosed: true,
	StatusCompleted:  true,
}

// entryStatuses is the subset of statuses that represent a fresh entry.
var entryStatuses = map[string]bool{
	StatusTaken: true,
}

// Divergence polarities reported by the scanner.
const (
	DivergenceBull = "bull"
	DivergenceBear = "bear"
)

// ScanEvent is one row from the backend divergence scanner. The scanner does
// not report a side; direction comes from the divergence polarity. Age fields
// are pointers because older backend builds omit them entirely.
type ScanEvent struct {
	TradeNo          string     `json:"trade_no"`
	Symbol           string     `json:"symbol"`
	Divergence       string     `json:"divergence"`
	Side             Side       `json:"side,omitempty"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason,omitempty"`
	MLConfidence     float64    `json:"ml_confidence"`
	MLAction         string     `json:"ml_action,omitempty"`
	EntryPrice       float64    `json:"entry_price"`
	LastPrice        float64    `json:"last_price"`
	Size             float64    `json:"trade_size"`
	Leverage         float64    `json:"leverage"`
	StopLoss         *float64   `json:"stop_loss,omitempty"`
	TakeProfit       *float64   `json:"take_profit,omitempty"`
	DivergenceAgeMin *float64   `json:"divergence_age_minutes,omitempty"`
	PriceAgeMin      *float64   `json:"price_age_minutes,omitempty"`
	EntryTime        *time.Time `json:"entry_time,omitempty"`
}

// UnmarshalJSON accepts both string and numeric trade numbers; the scanner
// emits them as plain integers.
func (e *ScanEvent) UnmarshalJSON(data []byte) error {
	type alias ScanEvent
	aux := struct {
		TradeNo json.RawMessage `json:"trade_no"`
		*alias
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.TradeNo) > 0 {
		var s string
		if json.Unmarshal(aux.TradeNo, &s) == nil {
			e.TradeNo = s
		} else {
			var n json.Number
			if json.Unmarshal(aux.TradeNo, &n) == nil {
				e.TradeNo = n.String()
			}
		}
	}
	return nil
}

// ScanBatch is one complete scanner response: the backend heartbeat, its
// running scan counter, and the batch of events.
type ScanBatch struct {
	Heartbeat time.Time
	ScanCount int64
	Symbols   []string
	Events    []ScanEvent
}

// IsLive reports whether the event status should appear in the ledger.
func (e ScanEvent) IsLive() bool { return liveStatuses[e.Status] }

// IsEntry reports whether the event represents a fresh entry signal.
func (e ScanEvent) IsEntry() bool { return entryStatuses[e.Status] }

// SignalSide resolves the event direction: an explicitly reported side wins,
// otherwise a bull divergence is a long and anything else a short.
func (e ScanEvent) SignalSide() Side {
	if e.Side == SideLong || e.Side == SideShort {
		return e.Side
	}
	if e.Divergence == DivergenceBull {
		return SideLong
	}
	return SideShort
}

// AgeMinutes derives the event's age as the worst (largest) of the reported
// divergence age, price age, and wall-clock minutes since entry. The second
// return is false when none of the candidates is a finite value, in which
// case staleness checks must fail open.
func (e ScanEvent) AgeMinutes(now time.Time) (float64, bool) {
	age := math.Inf(-1)
	found := false

	consider := func(v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			found = true
			if v > age {
				age = v
			}
		}
	}

	if e.DivergenceAgeMin != nil {
		consider(*e.DivergenceAgeMin)
	}
	if e.PriceAgeMin != nil {
		consider(*e.PriceAgeMin)
	}
	if e.EntryTime != nil && !e.EntryTime.IsZero() {
		consider(now.Sub(*e.EntryTime).Minutes())
	}

	if !found {
		return 0, false
	}
	return age, true
}

// StreamMessage is a single entry read back from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}
