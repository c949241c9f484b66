package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfmystrix/mystrix-console/internal/archive"
	"github.com/wolfmystrix/mystrix-console/internal/autotrade"
	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/platform/mystrix"
	"github.com/wolfmystrix/mystrix-console/internal/scan"
	"github.com/wolfmystrix/mystrix-console/internal/server"
	"github.com/wolfmystrix/mystrix-console/internal/server/handler"
	"github.com/wolfmystrix/mystrix-console/internal/server/ws"
	"github.com/wolfmystrix/mystrix-console/internal/service"
)

// archiveInterval is how often the archive pass runs in full mode.
const archiveInterval = 24 * time.Hour

// consoleOptions selects which optional subsystems a console run starts.
type consoleOptions struct {
	// routing starts the auto-trade router on accepted entry signals.
	routing bool
	// archive starts the periodic journal archive pass.
	archive bool
}

// MonitorMode starts read-only monitoring: scanner intake, price and balance
// polling, and the HTTP/WebSocket API. No orders are placed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runConsole(ctx, deps, consoleOptions{})
}

// TradeMode starts the full trading console: everything monitor mode runs
// plus the auto-trade router.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runConsole(ctx, deps, consoleOptions{routing: true})
}

// ArchiveMode runs a single journal-to-S3 archive pass and exits. It is meant
// to be invoked from cron.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: no archiver wired (postgres and s3 are both required)")
	}

	runner := archive.NewRunner(
		deps.Archiver, deps.Journal, deps.Signals,
		a.cfg.S3.RetentionDays, true, a.logger,
	)
	return runner.Run(ctx)
}

// FullMode starts the trading console plus the periodic archive pass.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.runConsole(ctx, deps, consoleOptions{routing: true, archive: true})
}

// paperPlacer routes orders into the paper simulator instead of the live
// autotrader.
type paperPlacer struct {
	backend *mystrix.Client
}

func (p paperPlacer) PlaceOrder(ctx context.Context, ord domain.OrderRequest) error {
	return p.backend.PaperOrder(ctx, ord)
}

// runConsole starts the shared console goroutines: scanner intake feeding the
// ledger (and, with opts.routing, the router), price and balance polling, the
// universe warm-up, the WebSocket hub, and the HTTP server. It blocks until
// the context is cancelled or a subsystem fails.
func (a *App) runConsole(ctx context.Context, deps *Dependencies, opts consoleOptions) error {
	g, ctx := errgroup.WithContext(ctx)

	startedAt := time.Now().UTC()
	mode := strings.ToLower(a.cfg.Mode)
	backend := deps.Backend

	if a.cfg.Paper.Enabled {
		a.bootstrapPaper(ctx, backend)
	}

	// Scan symbol set, replaced by universe suggestions, and the backend's
	// symbol catalog for manual-entry validation. The catalog load is best
	// effort; an empty catalog validates nothing.
	scanSymbols := scan.NewSymbolSet(a.cfg.Scan.Symbols...)
	catalog := scan.NewSymbolSet()
	if known, err := backend.Symbols(ctx); err != nil {
		a.logger.WarnContext(ctx, "symbol catalog fetch failed", slog.String("error", err.Error()))
	} else {
		catalog.Replace(known)
	}

	priceSvc := service.NewPriceService(
		deps.PriceCache, deps.Ledger, backend, deps.SignalBus,
		a.cfg.Backend.FetchInterval.Duration, a.cfg.Backend.Cooldown.Duration,
		a.logger,
	)
	balanceSvc := service.NewBalanceService(
		backend, backend, deps.Ledger, deps.Recorder,
		a.cfg.Paper.Enabled, a.logger,
	)
	positionSvc := service.NewPositionService(
		service.PositionServiceConfig{
			Paper:                a.cfg.Paper.Enabled,
			AllowLiveClose:       a.cfg.Venue.AllowLiveClose,
			AllowLiveTradingStop: a.cfg.Venue.AllowLiveTradingStop,
		},
		deps.Ledger, deps.Overrides, backend, priceSvc, catalog,
		deps.Journal, deps.Audit, deps.SignalBus, deps.Notifier,
		a.logger,
	)

	var router *autotrade.Router
	if opts.routing {
		var placer autotrade.OrderPlacer = backend
		if a.cfg.Paper.Enabled {
			placer = paperPlacer{backend: backend}
		}
		router = autotrade.New(
			autotrade.Config{
				Enabled:      a.cfg.Router.Enabled,
				MaxEquityPct: a.cfg.Router.MaxEquityPct,
				Leverage:     a.cfg.Router.Leverage,
				Paper:        a.cfg.Paper.Enabled,
			},
			placer, deps.Journal, deps.SignalBus, deps.Notifier, a.logger,
		)
	}

	// Scanner intake: mirror live signals into the ledger and hand fresh
	// entries to the router. Taken signals upsert their row; terminal ones
	// remove it. Rows for signals the scanner stops mentioning stay put.
	intake := scan.NewIntake(a.cfg.Router.MaxAge.Duration, deps.Signals, a.logger)
	pulse := &scan.Pulse{}
	handle := func(ctx context.Context, batch domain.ScanBatch) {
		pulse.Observe(batch.Heartbeat, batch.ScanCount)
		res := intake.Process(ctx, batch.Events)

		var added, removed int
		for _, pos := range res.Upserts {
			if deps.Ledger.Upsert(pos) {
				added++
			}
		}
		for _, key := range res.Removals {
			if _, ok := deps.Ledger.Remove(key); ok {
				removed++
			}
		}
		if added > 0 || removed > 0 {
			a.logger.InfoContext(ctx, "signal positions synced",
				slog.Int("added", added),
				slog.Int("removed", removed),
			)
		}

		if router == nil {
			return
		}
		balance, _ := balanceSvc.Balance()
		for _, ev := range res.Entries {
			if _, err := router.Route(ctx, ev, balance); err != nil {
				if errors.Is(err, domain.ErrRouterOff) {
					return
				}
				a.logger.WarnContext(ctx, "route entry signal failed",
					slog.String("trade_no", ev.TradeNo),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	poller := scan.NewPoller(
		backend, scanSymbols.List,
		a.cfg.Scan.Interval.Duration, a.cfg.Backend.ScanTimeout.Duration,
		handle, a.logger,
	)
	g.Go(func() error {
		return poller.Run(ctx)
	})

	// Price refresh loop.
	g.Go(func() error {
		return runEvery(ctx, a.cfg.Scan.PriceInterval.Duration, func(ctx context.Context) {
			if _, err := priceSvc.RefreshAll(ctx); err != nil {
				a.logger.WarnContext(ctx, "price refresh failed", slog.String("error", err.Error()))
			}
		})
	})

	// Balance refresh loop, driving level stats and the PnL recorder.
	g.Go(func() error {
		return runEvery(ctx, a.cfg.Scan.BalanceInterval.Duration, func(ctx context.Context) {
			if err := balanceSvc.Refresh(ctx); err != nil {
				a.logger.WarnContext(ctx, "balance refresh failed", slog.String("error", err.Error()))
			}
		})
	})

	// Debounced price refresh on ledger mutations, so a manual add or close
	// gets marked without waiting for the next poll tick.
	g.Go(func() error {
		return a.refreshOnMutation(ctx, deps, priceSvc)
	})

	// Universe refresh: adopt the backend's suggested symbols as the scan
	// set and pre-load their quotes so the watchlist has prices before any
	// position exists.
	if a.cfg.Scan.UniverseInterval.Duration > 0 {
		g.Go(func() error {
			return runEvery(ctx, a.cfg.Scan.UniverseInterval.Duration, func(ctx context.Context) {
				a.warmUniverse(ctx, backend, scanSymbols, priceSvc)
			})
		})
	}

	// WebSocket hub.
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      mode,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Archive pass (full mode).
	if opts.archive && deps.Archiver != nil {
		runner := archive.NewRunner(
			deps.Archiver, deps.Journal, deps.Signals,
			a.cfg.S3.RetentionDays, true, a.logger,
		)
		g.Go(func() error {
			return runner.RunLoop(ctx, archiveInterval)
		})
	}

	// HTTP server.
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, hub, consoleHandlers{
			mode:      mode,
			startedAt: startedAt,
			backend:   backend,
			prices:    priceSvc,
			positions: positionSvc,
			balances:  balanceSvc,
			router:    router,
			pulse:     pulse,
		})
	}

	return g.Wait()
}

// bootstrapPaper initialises the paper account the first time paper mode is
// entered. An existing account is left alone so balance history survives
// restarts.
func (a *App) bootstrapPaper(ctx context.Context, backend *mystrix.Client) {
	_, err := backend.PaperBalance(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		a.logger.WarnContext(ctx, "paper balance probe failed", slog.String("error", err.Error()))
		return
	}

	if err := backend.PaperInit(ctx, a.cfg.Paper.InitBalance); err != nil {
		a.logger.WarnContext(ctx, "paper account init failed", slog.String("error", err.Error()))
		return
	}
	a.logger.InfoContext(ctx, "paper account initialised",
		slog.Float64("balance", a.cfg.Paper.InitBalance),
	)
}

// mutationDebounce coalesces bursts of position events into one refresh.
const mutationDebounce = 500 * time.Millisecond

// refreshOnMutation listens for position change events and triggers a
// debounced price refresh.
func (a *App) refreshOnMutation(ctx context.Context, deps *Dependencies, prices *service.PriceService) error {
	ch, err := deps.SignalBus.Subscribe(ctx, "positions")
	if err != nil {
		return fmt.Errorf("app: subscribe positions: %w", err)
	}

	timer := time.NewTimer(mutationDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			timer.Reset(mutationDebounce)
		case <-timer.C:
			if _, err := prices.RefreshAll(ctx); err != nil {
				a.logger.WarnContext(ctx, "price refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// warmUniverse fetches the backend's symbol suggestions, makes them the scan
// set, and ingests a quote for each one. A failed or empty fetch leaves the
// current scan set alone.
func (a *App) warmUniverse(ctx context.Context, backend *mystrix.Client, set *scan.SymbolSet, prices *service.PriceService) {
	suggestions, err := backend.Universe(ctx, a.cfg.Scan.MaxAssets)
	if err != nil {
		a.logger.WarnContext(ctx, "universe fetch failed", slog.String("error", err.Error()))
		return
	}
	if len(suggestions) == 0 {
		return
	}

	symbols := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		if symbol := domain.NormalizeSymbol(s.Symbol); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return
	}
	set.Replace(symbols)

	quotes, err := backend.Prices(ctx, set.List())
	if err != nil {
		a.logger.WarnContext(ctx, "universe quote fetch failed", slog.String("error", err.Error()))
		return
	}
	warmed := 0
	now := time.Now().UTC()
	for symbol, price := range quotes {
		if err := prices.Ingest(ctx, symbol, price, now); err != nil {
			continue
		}
		warmed++
	}
	a.logger.InfoContext(ctx, "universe warmed",
		slog.Int("symbols", set.Len()),
		slog.Int("quotes", warmed),
	)
}

// consoleHandlers carries the services the HTTP layer exposes. router may be
// nil in monitor mode.
type consoleHandlers struct {
	mode      string
	startedAt time.Time
	backend   *mystrix.Client
	prices    *service.PriceService
	positions *service.PositionService
	balances  *service.BalanceService
	router    *autotrade.Router
	pulse     *scan.Pulse
}

// startHTTPServer adds the HTTP server goroutines to the errgroup. The server
// is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	hub *ws.Hub,
	ch consoleHandlers,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(ch.mode, ch.startedAt),
		Status: handler.NewStatusHandler(
			ch.mode, a.cfg.Paper.Enabled, ch.startedAt,
			deps.Ledger, ch.balances, ch.router, a.logger,
		).WithPulse(ch.pulse),
		Prices: handler.NewPriceHandler(ch.prices, a.logger),
		PnL:    handler.NewPnLHandler(deps.Recorder, balanceMode(a.cfg.Paper.Enabled)),
		Demo:   handler.NewDemoHandler(ch.backend, a.cfg.Paper.Enabled, a.cfg.Backend.DemoTimeout.Duration, a.logger),
	}
	if ch.positions != nil {
		handlers.Positions = handler.NewPositionHandler(ch.positions, a.logger)
	}
	if deps.Journal != nil && deps.Signals != nil {
		handlers.Journal = handler.NewJournalHandler(deps.Journal, deps.Signals, a.logger)
	}
	if a.cfg.Paper.Enabled {
		handlers.Paper = handler.NewPaperHandler(
			ch.backend, deps.Ledger, deps.Recorder,
			a.cfg.Paper.InitBalance, a.logger,
		)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// balanceMode names the PnL series the dashboard shows by default.
func balanceMode(paper bool) string {
	if paper {
		return "paper"
	}
	return "live"
}

// runEvery calls fn immediately and then on every tick until ctx is
// cancelled.
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fn(ctx)
		}
	}
}
