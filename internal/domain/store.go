package domain

import (
	"context"
	"time"
)

// TradeRecord is one journal row for an order the router placed (or a
// position the operator closed). The journal exists for audit and archival;
// the ledger itself stays in memory.
type TradeRecord struct {
	ID        string    `json:"id"`
	TradeNo   string    `json:"trade_no"`
	Source    Source    `json:"source"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Size      float64   `json:"size"`
	Leverage  float64   `json:"leverage"`
	Price     float64   `json:"price"`
	Level     *int      `json:"level,omitempty"`
	Status    string    `json:"status"`
	Paper     bool      `json:"paper"`
	CreatedAt time.Time `json:"created_at"`
}

// SignalRecord is one logged scanner event together with the intake verdict.
type SignalRecord struct {
	ID         string    `json:"id"`
	TradeNo    string    `json:"trade_no"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Status     string    `json:"status"`
	AgeMinutes *float64  `json:"age_minutes,omitempty"`
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason,omitempty"`
	SeenAt     time.Time `json:"seen_at"`
}

// TradeJournal persists routed orders and operator actions.
type TradeJournal interface {
	Insert(ctx context.Context, rec TradeRecord) error
	UpdateStatus(ctx context.Context, id string, status string) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SignalLog persists every scanner event the intake saw, accepted or not.
type SignalLog interface {
	Insert(ctx context.Context, rec SignalRecord) error
	ListRecent(ctx context.Context, limit int) ([]SignalRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]SignalRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditStore records structured operational events.
type AuditStore interface {
	Log(ctx context.Context, event string, payload map[string]any) error
}
