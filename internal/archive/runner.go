// Package archive moves aged journal rows out of PostgreSQL into S3 cold
// storage.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Runner executes archive passes: export everything older than the retention
// cutoff to blob storage, then optionally purge the exported rows.
type Runner struct {
	archiver      domain.Archiver
	journal       domain.TradeJournal
	signals       domain.SignalLog
	retentionDays int
	purge         bool
	logger        *slog.Logger
}

// NewRunner creates a Runner. journal and signals are only needed when purge
// is set.
func NewRunner(
	archiver domain.Archiver,
	journal domain.TradeJournal,
	signals domain.SignalLog,
	retentionDays int,
	purge bool,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		archiver:      archiver,
		journal:       journal,
		signals:       signals,
		retentionDays: retentionDays,
		purge:         purge,
		logger:        logger.With(slog.String("component", "archive_runner")),
	}
}

// Run executes one archive pass. The cutoff is retentionDays before now;
// rows are never purged unless their export succeeded.
func (r *Runner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)
	r.logger.InfoContext(ctx, "starting archive pass",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", r.retentionDays),
	)

	trades, err := r.archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive: trades before %v: %w", cutoff, err)
	}

	signals, err := r.archiver.ArchiveSignals(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive: signals before %v: %w", cutoff, err)
	}

	var purgedTrades, purgedSignals int64
	if r.purge {
		if trades > 0 && r.journal != nil {
			purgedTrades, err = r.journal.DeleteBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("archive: purge trades: %w", err)
			}
		}
		if signals > 0 && r.signals != nil {
			purgedSignals, err = r.signals.DeleteBefore(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("archive: purge signals: %w", err)
			}
		}
	}

	r.logger.InfoContext(ctx, "archive pass complete",
		slog.Int64("trades_archived", trades),
		slog.Int64("signals_archived", signals),
		slog.Int64("trades_purged", purgedTrades),
		slog.Int64("signals_purged", purgedSignals),
	)
	return nil
}

// RunLoop runs one pass immediately and again every interval until ctx is
// cancelled. Failed passes are logged and retried on the next tick.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil {
		r.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
