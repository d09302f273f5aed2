// Package archive records comparison results in a report store
// Identical inputs are archived once and later requests reuse the stored run
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ratedeck/decision/comparison"
	"ratedeck/db/storage"
	rderrors "ratedeck/pkg/errors"
)

// Archiver writes comparison runs to a ReportStore
type Archiver struct {
	store  storage.ReportStore
	logger zerolog.Logger
}

// NewArchiver creates a new archiver
func NewArchiver(store storage.ReportStore, logger zerolog.Logger) *Archiver {
	return &Archiver{store: store, logger: logger}
}

// ArchiveResult tracks the result of archiving one comparison
type ArchiveResult struct {
	RunID        uuid.UUID     `json:"runId"`
	Reused       bool          `json:"reused"`
	EntryCount   int           `json:"entryCount"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// Archive stores the reports for input unless a run with the same input hash
// already exists, in which case that run is returned.
func (a *Archiver) Archive(ctx context.Context, input comparison.Input, reports *comparison.Reports) (*ArchiveResult, error) {
	startTime := time.Now()
	result := &ArchiveResult{}

	if reports == nil {
		err := fmt.Errorf("no reports to archive")
		result.ErrorMessage = err.Error()
		return result, err
	}

	hash := input.Hash()
	existing, err := a.store.FindRunByHash(ctx, hash)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to look up run: %v", err)
		return result, err
	}
	if existing != nil {
		result.RunID = existing.ID
		result.Reused = true
		result.EntryCount = existing.Reports.PricingReport.EntryCount()
		result.Duration = time.Since(startTime)
		result.Success = true
		a.logger.Debug().Str("run_id", existing.ID.String()).Msg("reusing archived run")
		return result, nil
	}

	run := &storage.ComparisonRun{
		ID:        uuid.New(),
		InputHash: hash,
		FileName1: input.FileName1,
		FileName2: input.FileName2,
		Reports:   reports,
	}
	if err := a.store.SaveRun(ctx, run); err != nil {
		result.ErrorMessage = fmt.Sprintf("failed to save run: %v", err)
		return result, err
	}

	result.RunID = run.ID
	result.EntryCount = reports.PricingReport.EntryCount()
	result.Duration = time.Since(startTime)
	result.Success = true

	a.logger.Info().
		Str("run_id", run.ID.String()).
		Int("entries", result.EntryCount).
		Dur("duration", result.Duration).
		Msg("archived comparison run")

	return result, nil
}

// Get loads an archived run, returning a not-found error for unknown ids
func (a *Archiver) Get(ctx context.Context, id uuid.UUID) (*storage.ComparisonRun, error) {
	run, err := a.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, rderrors.NewRunNotFoundError(id.String())
	}
	return run, nil
}

// List returns the newest run summaries
func (a *Archiver) List(ctx context.Context, limit int) ([]storage.RunSummary, error) {
	return a.store.ListRuns(ctx, limit)
}
