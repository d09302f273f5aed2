package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratedeck/db/storage"
	"ratedeck/decision/comparison"
)

func TestFlattenEntries(t *testing.T) {
	t.Parallel()

	report := &comparison.PricingReport{
		HigherRatesForFile1: []comparison.ComparisonEntry{
			{DialCode: "44", DestName: "UK", RateFile1: 0.2, RateFile2: 0.1, PercentageDifference: 100},
			{DialCode: "33", DestName: "France", RateFile1: 0.3, RateFile2: 0.2, PercentageDifference: 50},
		},
		SameRates: []comparison.ComparisonEntry{
			{DialCode: "49", DestName: "Germany", RateFile1: 0.1, RateFile2: 0.1},
		},
		NonMatchingCodes: []comparison.NonMatchingEntry{
			{DialCode: "1", DestName: "US", Rate: 0.01, File: comparison.File2},
		},
	}

	rows := flattenEntries(report)
	require.Len(t, rows, report.EntryCount())

	assert.Equal(t, SectionHigherFile1, rows[0].Section)
	assert.Equal(t, uint32(0), rows[0].Position)
	assert.Equal(t, uint32(1), rows[1].Position)
	assert.Equal(t, "33", rows[1].DialCode)

	assert.Equal(t, SectionSame, rows[2].Section)
	assert.Equal(t, uint32(0), rows[2].Position)

	assert.Equal(t, SectionNonMatching, rows[3].Section)
	assert.Equal(t, 0.01, rows[3].RateFile1)
	assert.Equal(t, "file2", rows[3].File)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "ratedeck", cfg.Database)
	assert.Positive(t, cfg.BatchSize)
}

// recordingWriter records inserts in call order and can fail the entry batch
type recordingWriter struct {
	calls      []string
	entriesErr error
}

func (w *recordingWriter) insertEntries(_ context.Context, _ uuid.UUID, _ []entryRow) error {
	w.calls = append(w.calls, "entries")
	return w.entriesErr
}

func (w *recordingWriter) insertHeader(_ context.Context, _ *storage.ComparisonRun, _ []byte) error {
	w.calls = append(w.calls, "header")
	return nil
}

func testRun(t *testing.T) *storage.ComparisonRun {
	t.Helper()
	reports, err := comparison.GenerateReports(comparison.Input{
		FileName1: "a.csv",
		FileName2: "b.csv",
		File1Data: []comparison.StandardizedRecord{{DialCode: "44", DestName: "UK", Rate: 0.2}},
		File2Data: []comparison.StandardizedRecord{{DialCode: "44", DestName: "UK", Rate: 0.1}},
	})
	require.NoError(t, err)
	return &storage.ComparisonRun{InputHash: "h", FileName1: "a.csv", FileName2: "b.csv", Reports: reports}
}

func TestSaveRun_InsertsHeaderLast(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	require.NoError(t, saveRun(context.Background(), w, testRun(t)))
	assert.Equal(t, []string{"entries", "header"}, w.calls)
}

func TestSaveRun_When_EntryBatchFails(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{entriesErr: errors.New("batch send failed")}
	err := saveRun(context.Background(), w, testRun(t))
	require.Error(t, err)
	assert.Equal(t, []string{"entries"}, w.calls)
}

func TestSaveRun_When_ReportsAreMissing(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	err := saveRun(context.Background(), w, &storage.ComparisonRun{InputHash: "h"})
	require.Error(t, err)
	assert.Empty(t, w.calls)
}
