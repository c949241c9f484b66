package archive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfmystrix/mystrix-console/internal/domain"
)

type fakeArchiver struct {
	trades     int64
	signals    int64
	tradesErr  error
	signalsErr error
}

func (f *fakeArchiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	return f.trades, f.tradesErr
}

func (f *fakeArchiver) ArchiveSignals(ctx context.Context, before time.Time) (int64, error) {
	return f.signals, f.signalsErr
}

type fakeJournal struct {
	deleted   int
	deleteErr error
}

func (f *fakeJournal) Insert(ctx context.Context, rec domain.TradeRecord) error { return nil }
func (f *fakeJournal) UpdateStatus(ctx context.Context, id, status string) error {
	return nil
}
func (f *fakeJournal) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	return nil, nil
}
func (f *fakeJournal) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	return nil, nil
}
func (f *fakeJournal) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deleted++
	return 3, f.deleteErr
}

type fakeSignalLog struct {
	deleted int
}

func (f *fakeSignalLog) Insert(ctx context.Context, rec domain.SignalRecord) error { return nil }
func (f *fakeSignalLog) ListRecent(ctx context.Context, limit int) ([]domain.SignalRecord, error) {
	return nil, nil
}
func (f *fakeSignalLog) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error) {
	return nil, nil
}
func (f *fakeSignalLog) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	f.deleted++
	return 5, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPurgesOnlyExportedRows(t *testing.T) {
	arch := &fakeArchiver{trades: 10, signals: 0}
	journal := &fakeJournal{}
	signals := &fakeSignalLog{}

	r := NewRunner(arch, journal, signals, 90, true, testLogger())
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 1, journal.deleted)
	assert.Equal(t, 0, signals.deleted, "nothing was exported, nothing should be purged")
}

func TestRunWithoutPurgeKeepsRows(t *testing.T) {
	arch := &fakeArchiver{trades: 7, signals: 4}
	journal := &fakeJournal{}
	signals := &fakeSignalLog{}

	r := NewRunner(arch, journal, signals, 30, false, testLogger())
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 0, journal.deleted)
	assert.Equal(t, 0, signals.deleted)
}

func TestRunStopsOnExportFailure(t *testing.T) {
	arch := &fakeArchiver{trades: 2, signals: 2, signalsErr: errors.New("bucket gone")}
	journal := &fakeJournal{}
	signals := &fakeSignalLog{}

	r := NewRunner(arch, journal, signals, 90, true, testLogger())
	err := r.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 0, journal.deleted, "purge must not run after a failed export")
	assert.Equal(t, 0, signals.deleted)
}
