package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Scanner is the slice of the backend client the poller needs.
type Scanner interface {
	Scan(ctx context.Context, symbols []string) (domain.ScanBatch, error)
}

// Poller fetches scanner batches on a fixed interval and hands each batch to
// a handler. The symbol set is read fresh on every tick, so universe updates
// take effect on the next scan. Fetches run sequentially; a slow backend
// delays the next tick instead of stacking requests.
type Poller struct {
	scanner  Scanner
	symbols  func() []string
	handle   func(ctx context.Context, batch domain.ScanBatch)
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewPoller creates a Poller calling handle for every fetched batch. symbols
// supplies the scan symbol set per tick.
func NewPoller(
	scanner Scanner,
	symbols func() []string,
	interval, timeout time.Duration,
	handle func(ctx context.Context, batch domain.ScanBatch),
	logger *slog.Logger,
) *Poller {
	return &Poller{
		scanner:  scanner,
		symbols:  symbols,
		handle:   handle,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "scan_poller")),
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	batch, err := p.scanner.Scan(fetchCtx, p.symbols())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.WarnContext(ctx, "scan fetch failed", slog.String("error", err.Error()))
		return
	}

	p.handle(ctx, batch)
}
