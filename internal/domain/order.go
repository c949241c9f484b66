package domain

// OrderRequest is the payload the router hands to an order placer. Size is
// the leveraged notional in USDT.
type OrderRequest struct {
	ID         string  `json:"id"`
	TradeNo    string  `json:"trade_no"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Size       float64 `json:"size"`
	Leverage   float64 `json:"leverage"`
	ReduceOnly bool    `json:"reduce_only,omitempty"`
}

// RouteDecision is the router's verdict on a single scan event.
type RouteDecision struct {
	Accepted bool          `json:"accepted"`
	Reason   string        `json:"reason,omitempty"`
	Order    *OrderRequest `json:"order,omitempty"`
	Level    *int          `json:"level,omitempty"`
}
