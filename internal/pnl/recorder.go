// Package pnl records the compact session PnL series shown on the console
// chart: one sample per meaningful balance move, per trading mode.
package pnl

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Recorder keeps one PnL series per mode ("paper", "live"). The first
// balance observed in a session becomes that mode's base; every later
// observation is recorded only when the raw (unrounded) PnL moved by at
// least domain.SeriesMinDelta against the last recorded value, and the
// series is capped at domain.SeriesMaxPoints by dropping the oldest sample.
// Samples store the cent-rounded PnL but the delta comparison runs on the
// unrounded values, so sub-cent drift never accumulates into phantom
// samples across the rounding boundary.
type Recorder struct {
	mu      sync.Mutex
	series  map[string]*domain.PnLSeries
	based   map[string]bool
	lastPnL map[string]float64
	hasLast map[string]bool
	store   domain.SeriesStore
	logger  *slog.Logger
}

// New creates a Recorder persisting through store. A nil store keeps the
// series purely in memory.
func New(store domain.SeriesStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		series:  make(map[string]*domain.PnLSeries),
		based:   make(map[string]bool),
		lastPnL: make(map[string]float64),
		hasLast: make(map[string]bool),
		store:   store,
		logger:  logger.With(slog.String("component", "pnl_recorder")),
	}
}

// Restore loads a mode's persisted series so a restart continues the session
// instead of re-basing.
func (r *Recorder) Restore(ctx context.Context, mode string) error {
	if r.store == nil {
		return nil
	}
	series, err := r.store.LoadSeries(ctx, mode)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(series.Samples) > 0 || series.Base != 0 {
		s := series
		r.series[mode] = &s
		r.based[mode] = true
		if n := len(s.Samples); n > 0 {
			// The rounded value is all that survives a restart.
			r.lastPnL[mode] = s.Samples[n-1].PnL
			r.hasLast[mode] = true
		}
	}
	return nil
}

// Observe feeds one balance reading for a mode. Non-finite balances are
// ignored. It returns the sample that was appended, or false when the
// reading did not produce one.
func (r *Recorder) Observe(ctx context.Context, mode string, balance float64) (domain.PnLSample, bool) {
	if math.IsNaN(balance) || math.IsInf(balance, 0) {
		return domain.PnLSample{}, false
	}

	r.mu.Lock()
	series, ok := r.series[mode]
	if !ok {
		series = &domain.PnLSeries{}
		r.series[mode] = series
	}

	if !r.based[mode] {
		series.Base = balance
		r.based[mode] = true
	}

	pnl := balance - series.Base

	if r.hasLast[mode] && math.Abs(pnl-r.lastPnL[mode]) < domain.SeriesMinDelta-1e-9 {
		r.mu.Unlock()
		return domain.PnLSample{}, false
	}
	r.lastPnL[mode] = pnl
	r.hasLast[mode] = true

	sample := domain.PnLSample{
		TS:      time.Now().UTC(),
		Balance: balance,
		PnL:     round2(pnl),
	}
	series.Samples = append(series.Samples, sample)
	if len(series.Samples) > domain.SeriesMaxPoints {
		series.Samples = series.Samples[len(series.Samples)-domain.SeriesMaxPoints:]
	}
	snapshot := *series
	snapshot.Samples = append([]domain.PnLSample(nil), series.Samples...)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveSeries(ctx, mode, snapshot); err != nil {
			r.logger.WarnContext(ctx, "failed to persist pnl series",
				slog.String("mode", mode),
				slog.String("error", err.Error()),
			)
		}
	}

	return sample, true
}

// Series returns a copy of a mode's current series.
func (r *Recorder) Series(mode string) domain.PnLSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	series, ok := r.series[mode]
	if !ok {
		return domain.PnLSeries{}
	}
	out := *series
	out.Samples = append([]domain.PnLSample(nil), series.Samples...)
	return out
}

// Reset discards a mode's series so the next observation re-bases. Used when
// the paper account is re-initialised.
func (r *Recorder) Reset(ctx context.Context, mode string) {
	r.mu.Lock()
	delete(r.series, mode)
	delete(r.based, mode)
	delete(r.lastPnL, mode)
	delete(r.hasLast, mode)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveSeries(ctx, mode, domain.PnLSeries{}); err != nil {
			r.logger.WarnContext(ctx, "failed to clear persisted pnl series",
				slog.String("mode", mode),
				slog.String("error", err.Error()),
			)
		}
	}
}

// round2 rounds to cents, matching the precision the series is stored at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
