package scan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

type memSignalLog struct {
	records []domain.SignalRecord
}

func (l *memSignalLog) Insert(_ context.Context, rec domain.SignalRecord) error {
	l.records = append(l.records, rec)
	return nil
}

func (l *memSignalLog) ListRecent(context.Context, int) ([]domain.SignalRecord, error) {
	return l.records, nil
}

func (l *memSignalLog) ListBefore(context.Context, time.Time) ([]domain.SignalRecord, error) {
	return nil, nil
}

func (l *memSignalLog) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newTestIntake(log domain.SignalLog) *Intake {
	return NewIntake(30*time.Minute, log, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fptr(v float64) *float64 { return &v }

func TestProcessRejectsEntriesOlderThanMaxAge(t *testing.T) {
	log := &memSignalLog{}
	in := newTestIntake(log)

	events := []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Side: domain.SideLong, Status: domain.StatusTaken, DivergenceAgeMin: fptr(31)},
		{TradeNo: "T2", Symbol: "ETHUSDT", Side: domain.SideShort, Status: domain.StatusTaken, DivergenceAgeMin: fptr(30)},
	}

	res := in.Process(context.Background(), events)

	// Both taken events still reach the ledger.
	assert.Len(t, res.Upserts, 2)
	// Only the 30-minute-old entry may route.
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "T2", res.Entries[0].TradeNo)

	require.Len(t, log.records, 2)
	assert.False(t, log.records[0].Accepted)
	assert.Equal(t, "stale", log.records[0].Reason)
	assert.True(t, log.records[1].Accepted)
}

func TestProcessUsesWorstReportedAge(t *testing.T) {
	in := newTestIntake(nil)

	// Divergence age is fine but the price age pushes it over the limit.
	res := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Side: domain.SideLong, Status: domain.StatusTaken,
			DivergenceAgeMin: fptr(5), PriceAgeMin: fptr(45)},
	})
	assert.Empty(t, res.Entries)
	assert.Len(t, res.Upserts, 1)
}

func TestProcessFailsOpenWithoutAgeInformation(t *testing.T) {
	log := &memSignalLog{}
	in := newTestIntake(log)

	res := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Side: domain.SideLong, Status: domain.StatusTaken},
	})

	require.Len(t, res.Entries, 1)
	require.Len(t, log.records, 1)
	assert.True(t, log.records[0].Accepted)
	assert.Nil(t, log.records[0].AgeMinutes)
}

func TestProcessUpsertsTakenAndRemovesTerminal(t *testing.T) {
	in := newTestIntake(nil)

	res := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Side: domain.SideLong, Status: domain.StatusTaken},
		{TradeNo: "T2", Symbol: "ETHUSDT", Status: domain.StatusClosed},
		{TradeNo: "T3", Symbol: "SOLUSDT", Status: domain.StatusDemoClosed},
	})

	require.Len(t, res.Upserts, 1)
	assert.Equal(t, "signal:T1", res.Upserts[0].Key)
	assert.ElementsMatch(t, []string{"signal:T2", "signal:T3"}, res.Removals)
}

func TestProcessOmittedTradeStaysPut(t *testing.T) {
	in := newTestIntake(nil)

	// First batch takes T1, the next one does not mention it at all. The
	// row is client-owned, so the second batch must not ask for removal.
	first := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Side: domain.SideLong, Status: domain.StatusTaken},
	})
	require.Len(t, first.Upserts, 1)

	second := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T2", Symbol: "ETHUSDT", Side: domain.SideShort, Status: domain.StatusTaken},
	})
	require.Len(t, second.Upserts, 1)
	assert.Equal(t, "signal:T2", second.Upserts[0].Key)
	assert.Empty(t, second.Removals)
}

func TestProcessLogsScannerRejections(t *testing.T) {
	log := &memSignalLog{}
	in := newTestIntake(log)

	res := in.Process(context.Background(), []domain.ScanEvent{
		{TradeNo: "T1", Symbol: "BTCUSDT", Status: "rejected", Reason: "low volume"},
		{TradeNo: "T2", Symbol: "ETHUSDT", Status: "skipped", MLAction: "hold"},
		{TradeNo: "T3", Symbol: "SOLUSDT", Status: "pending"},
	})

	assert.Empty(t, res.Upserts)
	assert.Empty(t, res.Entries)
	assert.Empty(t, res.Removals)

	require.Len(t, log.records, 3)
	for _, rec := range log.records {
		assert.False(t, rec.Accepted)
	}
	assert.Equal(t, "low volume", log.records[0].Reason)
	assert.Equal(t, "hold", log.records[1].Reason)
	assert.Equal(t, "rejected", log.records[2].Reason)
}

func TestProcessBuildsSignalPositions(t *testing.T) {
	in := newTestIntake(nil)
	entry := time.Now().Add(-10 * time.Minute).UTC()

	res := in.Process(context.Background(), []domain.ScanEvent{
		{
			TradeNo:    "T9",
			Symbol:     "solusdt",
			Divergence: domain.DivergenceBear,
			Status:     domain.StatusTaken,
			EntryPrice: 150,
			LastPrice:  148,
			Size:       500,
			Leverage:   3,
			StopLoss:   fptr(160),
			TakeProfit: fptr(-1), // non-positive levels are dropped
			EntryTime:  &entry,
		},
	})

	require.Len(t, res.Upserts, 1)
	pos := res.Upserts[0]
	assert.Equal(t, "signal:T9", pos.Key)
	assert.Equal(t, domain.SourceSignal, pos.Source)
	assert.Equal(t, "SOL/USDT", pos.Symbol)
	assert.Equal(t, domain.SideShort, pos.Side)
	require.NotNil(t, pos.StopLoss)
	assert.Equal(t, 160.0, *pos.StopLoss)
	assert.Nil(t, pos.TakeProfit)
	assert.Equal(t, entry, pos.EntryTime)
}
