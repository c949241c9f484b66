// Package scan pulls divergence scanner events from the backend, filters them
// through the staleness gate, and hands them on to the ledger and the router.
package scan

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Intake screens raw scanner events. Live events become signal-source ledger
// entries; fresh entries additionally pass the staleness gate before they are
// offered to the auto-trade router.
type Intake struct {
	maxAge  time.Duration
	signals domain.SignalLog
	logger  *slog.Logger
	now     func() time.Time
}

// NewIntake creates an Intake. maxAge bounds how old an entry signal may be
// before it is rejected for routing; signals may be nil when no journal is
// configured.
func NewIntake(maxAge time.Duration, signals domain.SignalLog, logger *slog.Logger) *Intake {
	return &Intake{
		maxAge:  maxAge,
		signals: signals,
		logger:  logger.With(slog.String("component", "signal_intake")),
		now:     time.Now,
	}
}

// Result is what one scanner batch produced after screening.
type Result struct {
	// Upserts are the signal-source ledger rows for taken events. Signal
	// keys are client-owned: a batch that omits an open trade never removes
	// it.
	Upserts []domain.Position
	// Removals are the ledger keys of signals that reached a terminal
	// status in this batch.
	Removals []string
	// Entries are the fresh entry signals that passed the staleness gate.
	Entries []domain.ScanEvent
}

// Process screens one scanner batch. A taken event upserts its signal row
// and, if fresh enough, routes; a terminal live status removes the row.
// Everything else is a scanner rejection, logged with its reason rather than
// dropped.
func (in *Intake) Process(ctx context.Context, events []domain.ScanEvent) Result {
	now := in.now().UTC()
	var res Result

	for _, ev := range events {
		if !ev.IsLive() {
			in.record(ctx, ev, 0, false, false, rejectionReason(ev), now)
			in.logger.InfoContext(ctx, "scanner rejected signal",
				slog.String("trade_no", ev.TradeNo),
				slog.String("symbol", ev.Symbol),
				slog.String("status", ev.Status),
				slog.String("reason", rejectionReason(ev)),
			)
			continue
		}

		if !ev.IsEntry() {
			// Terminal live status: the signal row leaves the ledger.
			if ev.TradeNo != "" {
				res.Removals = append(res.Removals, domain.SignalKey(ev.TradeNo))
			}
			continue
		}

		res.Upserts = append(res.Upserts, eventPosition(ev, now))

		age, known := ev.AgeMinutes(now)
		accepted := true
		reason := ""
		// An event with no usable age information is accepted: the gate
		// fails open rather than discarding signals on missing telemetry.
		if known && age > in.maxAge.Minutes() {
			accepted = false
			reason = "stale"
		}

		in.record(ctx, ev, age, known, accepted, reason, now)

		if accepted {
			res.Entries = append(res.Entries, ev)
		} else {
			in.logger.InfoContext(ctx, "rejected stale entry signal",
				slog.String("trade_no", ev.TradeNo),
				slog.String("symbol", ev.Symbol),
				slog.Float64("age_minutes", age),
				slog.Float64("max_minutes", in.maxAge.Minutes()),
			)
		}
	}

	return res
}

// rejectionReason picks the most specific label the scanner attached to a
// non-live event.
func rejectionReason(ev domain.ScanEvent) string {
	if ev.Reason != "" {
		return ev.Reason
	}
	if ev.MLAction != "" {
		return ev.MLAction
	}
	return "rejected"
}

// record writes the intake verdict to the signal log. Journal failures are
// logged and swallowed so a database hiccup never drops a batch.
func (in *Intake) record(ctx context.Context, ev domain.ScanEvent, age float64, known, accepted bool, reason string, now time.Time) {
	if in.signals == nil {
		return
	}

	rec := domain.SignalRecord{
		ID:       uuid.NewString(),
		TradeNo:  ev.TradeNo,
		Symbol:   domain.NormalizeSymbol(ev.Symbol),
		Side:     ev.SignalSide(),
		Status:   ev.Status,
		Accepted: accepted,
		Reason:   reason,
		SeenAt:   now,
	}
	if known {
		a := age
		rec.AgeMinutes = &a
	}

	if err := in.signals.Insert(ctx, rec); err != nil {
		in.logger.WarnContext(ctx, "failed to log signal verdict",
			slog.String("trade_no", ev.TradeNo),
			slog.String("error", err.Error()),
		)
	}
}

// eventPosition converts a taken scanner event into its ledger entry. The
// side comes from the divergence polarity.
func eventPosition(ev domain.ScanEvent, now time.Time) domain.Position {
	tradeNo := ev.TradeNo
	if tradeNo == "" {
		// A taken event without a trade number still gets a row; the key
		// just cannot be matched by a later terminal event.
		tradeNo = strconv.FormatInt(now.UnixMilli(), 10)
	}
	pos := domain.Position{
		Key:        domain.SignalKey(tradeNo),
		Source:     domain.SourceSignal,
		Symbol:     domain.NormalizeSymbol(ev.Symbol),
		Side:       ev.SignalSide(),
		Size:       ev.Size,
		Leverage:   ev.Leverage,
		EntryPrice: ev.EntryPrice,
		LastPrice:  ev.LastPrice,
		StopLoss:   finitePtr(ev.StopLoss),
		TakeProfit: finitePtr(ev.TakeProfit),
		Status:     ev.Status,
		TradeNo:    ev.TradeNo,
		UpdatedAt:  now,
	}
	if ev.EntryTime != nil {
		pos.EntryTime = *ev.EntryTime
	}
	return pos
}

// finitePtr copies a pointer, dropping non-finite and non-positive levels.
func finitePtr(v *float64) *float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
