package domain

import "time"

const (
	// SeriesMaxPoints caps the PnL series length; the oldest sample is
	// dropped once the cap is reached.
	SeriesMaxPoints = 160

	// SeriesMinDelta is the minimum absolute PnL change (in USDT, after
	// rounding to cents) required before a new sample is appended.
	SeriesMinDelta = 0.01
)

// PnLSample is one point of the running session PnL series. PnL is the
// balance delta against the session base, rounded to cents.
type PnLSample struct {
	TS      time.Time `json:"ts"`
	Balance float64   `json:"balance"`
	PnL     float64   `json:"pnl"`
}

// PnLSeries is the persisted form of one mode's PnL recording: the session
// base balance plus the retained samples.
type PnLSeries struct {
	Base    float64     `json:"base"`
	Samples []PnLSample `json:"samples"`
}
