package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// TradeStore implements domain.TradeJournal using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ domain.TradeJournal = (*TradeStore)(nil)

const tradeColumns = `id, trade_no, source, symbol, side, size, leverage, price, level, status, paper, created_at`

// Insert appends one journal row.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_journal (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.TradeNo, string(rec.Source), rec.Symbol, string(rec.Side),
		rec.Size, rec.Leverage, rec.Price, rec.Level, rec.Status, rec.Paper,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus sets the status of one journal row.
func (s *TradeStore) UpdateStatus(ctx context.Context, id string, status string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trade_journal SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("postgres: update trade %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update trade %s status: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListRecent returns the newest journal rows, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + tradeColumns + `
		FROM trade_journal
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// ListBefore returns journal rows created strictly before the cutoff, oldest
// first, in the order they will be archived.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	const query = `
		SELECT ` + tradeColumns + `
		FROM trade_journal
		WHERE created_at < $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// DeleteBefore removes journal rows created strictly before the cutoff and
// returns how many were deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trade_journal WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrades(rows pgxRows) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for rows.Next() {
		var (
			rec    domain.TradeRecord
			source string
			side   string
		)
		if err := rows.Scan(
			&rec.ID, &rec.TradeNo, &source, &rec.Symbol, &side,
			&rec.Size, &rec.Leverage, &rec.Price, &rec.Level, &rec.Status,
			&rec.Paper, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade row: %w", err)
		}
		rec.Source = domain.Source(source)
		rec.Side = domain.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return out, nil
}
