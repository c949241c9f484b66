package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

// Narrow read interfaces for the archiver. The Postgres stores satisfy these
// through their time-ranged ListBefore queries; the archiver never needs the
// full journal interfaces.

// TradeArchiveStore provides read access to aged journal rows.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error)
}

// SignalArchiveStore provides read access to aged signal log rows.
type SignalArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error)
}

// ArchiveImpl implements domain.Archiver: it exports aged journal rows to the
// object store and records the export in the audit log.
//
// Deleting the exported rows from Postgres is a separate explicit step, run
// only after the upload succeeded.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	trades  TradeArchiveStore
	signals SignalArchiveStore
	audit   domain.AuditStore
}

// NewArchiver creates an ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	trades TradeArchiveStore,
	signals SignalArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		trades:  trades,
		signals: signals,
		audit:   audit,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveTrades exports journal rows older than the cutoff as CSV to
// archive/trades/YYYY-MM.csv and returns how many rows were exported.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalTradesCSV(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before, "csv")
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))
	if err := a.audit.Log(ctx, "archive.trades", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}
	return count, nil
}

// ArchiveSignals exports signal log rows older than the cutoff as JSONL to
// archive/signals/YYYY-MM.jsonl and returns how many rows were exported.
func (a *ArchiveImpl) ArchiveSignals(ctx context.Context, before time.Time) (int64, error) {
	signals, err := a.signals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	if len(signals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(signals)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals marshal: %w", err)
	}

	path := archivePath("signals", before, "jsonl")
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive signals upload: %w", err)
	}

	count := int64(len(signals))
	if err := a.audit.Log(ctx, "archive.signals", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive signals audit log: %w", err)
	}
	return count, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff:
//
//	archive/trades/2026-08.csv
//	archive/signals/2026-08.jsonl
func archivePath(kind string, before time.Time, ext string) string {
	return fmt.Sprintf("archive/%s/%s.%s", kind, before.Format("2006-01"), ext)
}

// marshalTradesCSV renders journal rows as CSV with a header row, the format
// the console's export download expects.
func marshalTradesCSV(records []domain.TradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"id", "trade_no", "source", "symbol", "side",
		"size", "leverage", "price", "level", "status", "paper", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}

	for i, rec := range records {
		level := ""
		if rec.Level != nil {
			level = strconv.Itoa(*rec.Level)
		}
		row := []string{
			rec.ID,
			rec.TradeNo,
			string(rec.Source),
			rec.Symbol,
			string(rec.Side),
			strconv.FormatFloat(rec.Size, 'f', -1, 64),
			strconv.FormatFloat(rec.Leverage, 'f', -1, 64),
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			level,
			rec.Status,
			strconv.FormatBool(rec.Paper),
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv record %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("csv flush: %w", err)
	}
	return buf.Bytes(), nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
