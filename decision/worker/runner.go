// Package worker runs comparisons off the caller's goroutine
// Bounds concurrent comparisons, honours caller deadlines and caches results by input hash
package worker

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"ratedeck/decision/comparison"
	"ratedeck/pkg/platform"
)

// Config holds runner configuration
type Config struct {
	MaxConcurrent int
	CacheSize     int
	Timeout       time.Duration
}

// DefaultConfig returns default runner configuration
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent: 4,
		CacheSize:     128,
		Timeout:       2 * time.Minute,
	}
}

// ConfigFromEnv reads runner settings from RATEDECK_MAX_CONCURRENT,
// RATEDECK_CACHE_SIZE and RATEDECK_COMPARE_TIMEOUT, falling back to defaults
func ConfigFromEnv() *Config {
	def := DefaultConfig()
	return &Config{
		MaxConcurrent: platform.GetEnvInt("RATEDECK_MAX_CONCURRENT", def.MaxConcurrent),
		CacheSize:     platform.GetEnvInt("RATEDECK_CACHE_SIZE", def.CacheSize),
		Timeout:       platform.GetEnvDuration("RATEDECK_COMPARE_TIMEOUT", def.Timeout),
	}
}

// Runner executes comparisons on background goroutines.
// Cached reports are shared between callers and must be treated as read-only.
type Runner struct {
	cfg     *Config
	logger  zerolog.Logger
	sem     chan struct{}
	azCache *lru.Cache[string, *comparison.Reports]
	usCache *lru.Cache[string, *comparison.USReports]

	compareAZ func(comparison.Input) (*comparison.Reports, error)
	compareUS func(comparison.USInput) (*comparison.USReports, error)
}

// NewRunner creates a runner
func NewRunner(cfg *Config, logger zerolog.Logger) (*Runner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1
	}

	azCache, err := lru.New[string, *comparison.Reports](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create report cache: %w", err)
	}
	usCache, err := lru.New[string, *comparison.USReports](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create US report cache: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		logger:    logger.With().Str("component", "runner").Logger(),
		sem:       make(chan struct{}, cfg.MaxConcurrent),
		azCache:   azCache,
		usCache:   usCache,
		compareAZ: comparison.GenerateReports,
		compareUS: comparison.CompareUS,
	}, nil
}

// Compare runs an A-Z comparison. It returns when the comparison finishes or
// ctx is done, whichever comes first. Invalid input fails immediately.
func (r *Runner) Compare(ctx context.Context, in comparison.Input) (*comparison.Reports, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	key := in.Hash()
	if cached, ok := r.azCache.Get(key); ok {
		r.logger.Debug().Str("hash", key[:12]).Msg("comparison served from cache")
		return cached, nil
	}

	start := time.Now()
	reports, err := run(r, ctx, func() (*comparison.Reports, error) { return r.compareAZ(in) })
	if err != nil {
		return nil, err
	}

	r.azCache.Add(key, reports)
	r.logger.Info().
		Str("file1", in.FileName1).
		Str("file2", in.FileName2).
		Int("codes_file1", len(in.File1Data)).
		Int("codes_file2", len(in.File2Data)).
		Int("matched", reports.CodeReport.MatchedCodes).
		Dur("took", time.Since(start)).
		Msg("comparison complete")
	return reports, nil
}

// CompareUS runs a US NPANXX comparison with the same scheduling as Compare.
func (r *Runner) CompareUS(ctx context.Context, in comparison.USInput) (*comparison.USReports, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	key := in.Hash()
	if cached, ok := r.usCache.Get(key); ok {
		return cached, nil
	}

	start := time.Now()
	reports, err := run(r, ctx, func() (*comparison.USReports, error) { return r.compareUS(in) })
	if err != nil {
		return nil, err
	}

	r.usCache.Add(key, reports)
	r.logger.Info().
		Str("file1", in.FileName1).
		Str("file2", in.FileName2).
		Int("matched", reports.CodeReport.MatchedCodes).
		Dur("took", time.Since(start)).
		Msg("US comparison complete")
	return reports, nil
}

// CacheLen returns the number of cached A-Z and US results
func (r *Runner) CacheLen() int {
	return r.azCache.Len() + r.usCache.Len()
}

type outcome[T any] struct {
	value T
	err   error
}

// run executes fn on its own goroutine once a slot is free. An abandoned fn
// keeps its slot until it returns.
func run[T any](r *Runner, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return zero, fmt.Errorf("comparison not started: %w", ctx.Err())
	}

	done := make(chan outcome[T], 1)
	go func() {
		defer func() { <-r.sem }()
		v, err := fn()
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		r.logger.Warn().Err(ctx.Err()).Msg("comparison abandoned")
		return zero, fmt.Errorf("comparison abandoned: %w", ctx.Err())
	}
}
