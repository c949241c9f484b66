package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// SignalStore implements domain.SignalLog using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

var _ domain.SignalLog = (*SignalStore)(nil)

const signalColumns = `id, trade_no, symbol, side, status, age_minutes, accepted, reason, seen_at`

// Insert appends one scanner event together with the intake verdict.
func (s *SignalStore) Insert(ctx context.Context, rec domain.SignalRecord) error {
	const query = `
		INSERT INTO signal_log (` + signalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	seenAt := rec.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.TradeNo, rec.Symbol, string(rec.Side), rec.Status,
		rec.AgeMinutes, rec.Accepted, rec.Reason, seenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the newest logged signals, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, limit int) ([]domain.SignalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT ` + signalColumns + `
		FROM signal_log
		ORDER BY seen_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// ListBefore returns signals seen strictly before the cutoff, oldest first.
func (s *SignalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error) {
	const query = `
		SELECT ` + signalColumns + `
		FROM signal_log
		WHERE seen_at < $1
		ORDER BY seen_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// DeleteBefore removes signals seen strictly before the cutoff and returns
// how many were deleted.
func (s *SignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM signal_log WHERE seen_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete signals before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanSignals(rows pgxRows) ([]domain.SignalRecord, error) {
	var out []domain.SignalRecord
	for rows.Next() {
		var (
			rec  domain.SignalRecord
			side string
		)
		if err := rows.Scan(
			&rec.ID, &rec.TradeNo, &rec.Symbol, &side, &rec.Status,
			&rec.AgeMinutes, &rec.Accepted, &rec.Reason, &rec.SeenAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal row: %w", err)
		}
		rec.Side = domain.Side(side)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: signal rows: %w", err)
	}
	return out, nil
}
