package s3blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

type fakeWriter struct {
	path        string
	contentType string
	body        string
	calls       int
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.path = path
	w.contentType = contentType
	w.body = string(b)
	w.calls++
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(context.Background(), path, data, "")
}

type fakeTradeStore struct {
	records []domain.TradeRecord
}

func (s *fakeTradeStore) ListBefore(context.Context, time.Time) ([]domain.TradeRecord, error) {
	return s.records, nil
}

type fakeSignalStore struct {
	records []domain.SignalRecord
}

func (s *fakeSignalStore) ListBefore(context.Context, time.Time) ([]domain.SignalRecord, error) {
	return s.records, nil
}

type fakeAudit struct {
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func TestArchiveTradesWritesCSV(t *testing.T) {
	level := 3
	trades := &fakeTradeStore{records: []domain.TradeRecord{
		{
			ID:        "t-1",
			TradeNo:   "TN-9",
			Source:    domain.SourceBybit,
			Symbol:    "BTC/USDT",
			Side:      domain.SideLong,
			Size:      120,
			Leverage:  5,
			Price:     43000.5,
			Level:     &level,
			Status:    "routed",
			CreatedAt: time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
		},
	}}
	writer := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, trades, &fakeSignalStore{}, audit)

	cutoff := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Equal(t, "archive/trades/2026-08.csv", writer.path)
	assert.Equal(t, "text/csv", writer.contentType)

	lines := strings.Split(strings.TrimSpace(writer.body), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,trade_no,source,symbol"))
	assert.Contains(t, lines[1], "t-1,TN-9,bybit,BTC/USDT,long,120,5,43000.5,3,routed,false")

	assert.Equal(t, []string{"archive.trades"}, audit.events)
}

func TestArchiveTradesSkipsUploadWhenEmpty(t *testing.T) {
	writer := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeTradeStore{}, &fakeSignalStore{}, audit)

	count, err := arch.ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, writer.calls)
	assert.Empty(t, audit.events)
}

func TestArchiveSignalsWritesJSONL(t *testing.T) {
	age := 12.5
	signals := &fakeSignalStore{records: []domain.SignalRecord{
		{ID: "s-1", TradeNo: "TN-1", Symbol: "ETH/USDT", Side: domain.SideShort, Status: domain.StatusTaken, AgeMinutes: &age, Accepted: true},
		{ID: "s-2", TradeNo: "TN-2", Symbol: "SOL/USDT", Side: domain.SideLong, Status: domain.StatusTaken, Accepted: false, Reason: "stale"},
	}}
	writer := &fakeWriter{}
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeTradeStore{}, signals, audit)

	cutoff := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	count, err := arch.ArchiveSignals(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, "archive/signals/2026-07.jsonl", writer.path)
	assert.Equal(t, "application/x-ndjson", writer.contentType)

	lines := strings.Split(strings.TrimSpace(writer.body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"trade_no":"TN-1"`)
	assert.Contains(t, lines[1], `"reason":"stale"`)

	assert.Equal(t, []string{"archive.signals"}, audit.events)
}
