package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. Payloads are
// stored as JSONB.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

var _ domain.AuditStore = (*AuditStore)(nil)

// Log appends one audit entry with the given event name and payload.
func (s *AuditStore) Log(ctx context.Context, event string, payload map[string]any) error {
	detail, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit payload: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detail)
	if err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}
