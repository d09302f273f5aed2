package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratedeck/decision/comparison"
)

func sampleRun(hash string, created time.Time) *ComparisonRun {
	return &ComparisonRun{
		InputHash: hash,
		FileName1: "a.csv",
		FileName2: "b.csv",
		CreatedAt: created,
		Reports: &comparison.Reports{
			PricingReport: comparison.PricingReport{
				HigherRatesForFile1: []comparison.ComparisonEntry{{DialCode: "44", DestName: "UK", RateFile1: 0.2, RateFile2: 0.1, PercentageDifference: 100}},
				NonMatchingCodes:    []comparison.NonMatchingEntry{{DialCode: "1", DestName: "US", Rate: 0.01, File: comparison.File2}},
				FileName1:           "a.csv",
				FileName2:           "b.csv",
			},
			CodeReport: comparison.CodeReport{MatchedCodes: 1, NonMatchedCodes: 1},
		},
	}
}

func TestMemoryStore_SaveRun_AssignsIDAndTime(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	run := sampleRun("h1", time.Time{})
	require.NoError(t, store.SaveRun(context.Background(), run))

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.Reports, got.Reports)
}

func TestMemoryStore_When_RunMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	got, err := store.GetRun(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.FindRunByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_FindRunByHash(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	run := sampleRun("abc", time.Now())
	require.NoError(t, store.SaveRun(context.Background(), run))

	got, err := store.FindRunByHash(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
}

func TestMemoryStore_ListRuns_NewestFirst(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveRun(context.Background(), sampleRun("", base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt))
	assert.True(t, all[1].CreatedAt.After(all[2].CreatedAt))

	assert.Equal(t, 1, all[0].HigherRatesForFile1)
	assert.Equal(t, 1, all[0].NonMatchingCodes)
	assert.Equal(t, 1, all[0].MatchedCodes)

	limited, err := store.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
