package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
	"github.com/wolfmystrix/mystrix-console/internal/ledger"
	"github.com/wolfmystrix/mystrix-console/internal/pnl"
)

// PaperVenue is the paper-account slice of the backend client.
type PaperVenue interface {
	PaperTick(ctx context.Context) error
	PaperBalance(ctx context.Context) (float64, error)
	PaperPositions(ctx context.Context) ([]domain.Position, error)
}

// LiveVenue is the live-account slice of the backend client.
type LiveVenue interface {
	Balance(ctx context.Context) (float64, error)
	Positions(ctx context.Context) ([]domain.Position, error)
}

// BalanceService polls the active account's balance and open positions,
// mirrors the positions into the ledger, derives the risk ladder rung, and
// feeds the PnL recorder.
type BalanceService struct {
	paper    PaperVenue
	live     LiveVenue
	ledger   *ledger.Ledger
	recorder *pnl.Recorder
	usePaper bool
	logger   *slog.Logger

	mu      sync.Mutex
	balance float64
	level   *domain.RiskLevel
}

// NewBalanceService creates a BalanceService. usePaper selects which account
// the service follows; recorder may be nil.
func NewBalanceService(
	paper PaperVenue,
	live LiveVenue,
	lg *ledger.Ledger,
	recorder *pnl.Recorder,
	usePaper bool,
	logger *slog.Logger,
) *BalanceService {
	return &BalanceService{
		paper:    paper,
		live:     live,
		ledger:   lg,
		recorder: recorder,
		usePaper: usePaper,
		logger:   logger.With(slog.String("component", "balance_service")),
	}
}

// Mode names the account the service follows, also used as the PnL series
// key.
func (s *BalanceService) Mode() string {
	if s.usePaper {
		return "paper"
	}
	return "live"
}

// Refresh pulls the current balance and positions and reconciles them into
// the ledger.
func (s *BalanceService) Refresh(ctx context.Context) error {
	var (
		balance   float64
		positions []domain.Position
		source    domain.Source
		err       error
	)

	if s.usePaper {
		// The tick advances the simulator; a failed tick still leaves a
		// readable balance, so it only warns.
		if err := s.paper.PaperTick(ctx); err != nil {
			s.logger.WarnContext(ctx, "paper tick failed", slog.String("error", err.Error()))
		}
		balance, err = s.paper.PaperBalance(ctx)
		if err != nil {
			return fmt.Errorf("balance_service: paper balance: %w", err)
		}
		positions, err = s.paper.PaperPositions(ctx)
		if err != nil {
			return fmt.Errorf("balance_service: paper positions: %w", err)
		}
		source = domain.SourcePaper
	} else {
		balance, err = s.live.Balance(ctx)
		if err != nil {
			return fmt.Errorf("balance_service: live balance: %w", err)
		}
		positions, err = s.live.Positions(ctx)
		if err != nil {
			return fmt.Errorf("balance_service: live positions: %w", err)
		}
		source = domain.SourceBybit
	}

	added, removed := s.ledger.SyncSource(source, positions)
	if added > 0 || removed > 0 {
		s.logger.InfoContext(ctx, "reconciled venue positions",
			slog.String("source", string(source)),
			slog.Int("added", added),
			slog.Int("removed", removed),
		)
	}

	level := domain.LevelForBalance(balance)

	s.mu.Lock()
	s.balance = balance
	s.level = level
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.Observe(ctx, s.Mode(), balance)
	}
	return nil
}

// Balance returns the last observed balance and its risk ladder rung.
func (s *BalanceService) Balance() (float64, *domain.RiskLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, s.level
}
