package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratedeck/decision/comparison"
	rderrors "ratedeck/pkg/errors"
)

func sampleInput() comparison.Input {
	return comparison.Input{
		FileName1: "a.csv",
		FileName2: "b.csv",
		File1Data: []comparison.StandardizedRecord{{DialCode: "93", DestName: "X", Rate: 0.18}},
		File2Data: []comparison.StandardizedRecord{{DialCode: "93", DestName: "X", Rate: 0.198}},
	}
}

func newTestRunner(t *testing.T, cfg *Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestRunner_Compare_ReturnsReports(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, nil)
	reports, err := r.Compare(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Len(t, reports.PricingReport.HigherRatesForFile2, 1)
	assert.Equal(t, 1, r.CacheLen())
}

func TestRunner_Compare_CachesByInputHash(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, DefaultConfig())
	var calls atomic.Int32
	r.compareAZ = func(in comparison.Input) (*comparison.Reports, error) {
		calls.Add(1)
		return comparison.GenerateReports(in)
	}

	first, err := r.Compare(context.Background(), sampleInput())
	require.NoError(t, err)
	second, err := r.Compare(context.Background(), sampleInput())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_Compare_When_DestNamesContainSeparators(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, DefaultConfig())
	file2 := []comparison.StandardizedRecord{{DialCode: "1", DestName: "X", Rate: 0.1}}
	a := comparison.Input{
		FileName1: "a.csv", FileName2: "b.csv",
		File1Data: []comparison.StandardizedRecord{
			{DialCode: "1", DestName: "X", Rate: 0.1},
			{DialCode: "2", DestName: "Y", Rate: 0.2},
		},
		File2Data: file2,
	}
	b := comparison.Input{
		FileName1: "a.csv", FileName2: "b.csv",
		File1Data: []comparison.StandardizedRecord{{DialCode: "1", DestName: "X|0.1;2|Y", Rate: 0.2}},
		File2Data: file2,
	}

	ra, err := r.Compare(context.Background(), a)
	require.NoError(t, err)
	rb, err := r.Compare(context.Background(), b)
	require.NoError(t, err)

	assert.NotSame(t, ra, rb)
	assert.Len(t, ra.PricingReport.NonMatchingCodes, 1)
	assert.Empty(t, rb.PricingReport.NonMatchingCodes)
	assert.Equal(t, 2, ra.CodeReport.File1.TotalCodes)
	assert.Equal(t, 1, rb.CodeReport.File1.TotalCodes)
	assert.Equal(t, 2, r.CacheLen())
}

func TestRunner_Compare_DoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, nil)
	boom := errors.New("boom")
	r.compareAZ = func(comparison.Input) (*comparison.Reports, error) { return nil, boom }

	_, err := r.Compare(context.Background(), sampleInput())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.CacheLen())
}

func TestRunner_Compare_When_InputIsMissing(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, nil)
	r.compareAZ = func(comparison.Input) (*comparison.Reports, error) {
		t.Error("comparison must not run for invalid input")
		return nil, nil
	}

	_, err := r.Compare(context.Background(), comparison.Input{FileName1: "a.csv"})
	require.Error(t, err)
	assert.True(t, rderrors.IsInvalidInput(err))
}

func TestRunner_Compare_When_DeadlineExpires(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &Config{MaxConcurrent: 1, CacheSize: 8, Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	r.compareAZ = func(in comparison.Input) (*comparison.Reports, error) {
		<-release
		return comparison.GenerateReports(in)
	}

	_, err := r.Compare(context.Background(), sampleInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned comparison still holds the only slot.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Compare(ctx, sampleInput())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool { return len(r.sem) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, r.CacheLen())
}

func TestRunner_Compare_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &Config{MaxConcurrent: 2, CacheSize: 16, Timeout: 5 * time.Second})
	var running, peak atomic.Int32
	r.compareAZ = func(in comparison.Input) (*comparison.Reports, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return comparison.GenerateReports(in)
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		in := sampleInput()
		in.FileName1 = string(rune('a'+i)) + ".csv"
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Compare(context.Background(), in)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 6, r.CacheLen())
}

func TestRunner_CompareUS(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, nil)
	in := comparison.USInput{
		FileName1: "a.csv",
		FileName2: "b.csv",
		File1Data: []comparison.USRecord{{NPANXX: "201200", State: "NJ", InterRate: 0.01, IntraRate: 0.01, IJRate: 0.01}},
		File2Data: []comparison.USRecord{{NPANXX: "201200", State: "NJ", InterRate: 0.02, IntraRate: 0.01, IJRate: 0.01}},
	}

	reports, err := r.CompareUS(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, reports.Interstate.HigherRatesForFile2, 1)

	again, err := r.CompareUS(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, reports, again)

	_, err = r.CompareUS(context.Background(), comparison.USInput{})
	assert.True(t, rderrors.IsInvalidInput(err))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RATEDECK_MAX_CONCURRENT", "8")
	t.Setenv("RATEDECK_COMPARE_TIMEOUT", "45s")
	t.Setenv("RATEDECK_CACHE_SIZE", "not-a-number")

	cfg := ConfigFromEnv()
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultConfig().CacheSize, cfg.CacheSize)
}
