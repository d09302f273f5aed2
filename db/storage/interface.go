// Package storage defines the comparison report archive
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ratedeck/decision/comparison"
)

// ComparisonRun is one archived comparison
type ComparisonRun struct {
	ID        uuid.UUID           `json:"id"`
	InputHash string              `json:"inputHash"`
	FileName1 string              `json:"fileName1"`
	FileName2 string              `json:"fileName2"`
	Reports   *comparison.Reports `json:"reports"`
	CreatedAt time.Time           `json:"createdAt"`
}

// RunSummary is the listing view of a run
type RunSummary struct {
	ID                  uuid.UUID `json:"id"`
	InputHash           string    `json:"inputHash"`
	FileName1           string    `json:"fileName1"`
	FileName2           string    `json:"fileName2"`
	HigherRatesForFile1 int       `json:"higherRatesForFile1"`
	HigherRatesForFile2 int       `json:"higherRatesForFile2"`
	SameRates           int       `json:"sameRates"`
	NonMatchingCodes    int       `json:"nonMatchingCodes"`
	MatchedCodes        int       `json:"matchedCodes"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Summary builds the listing view of a run
func (r *ComparisonRun) Summary() RunSummary {
	s := RunSummary{
		ID:        r.ID,
		InputHash: r.InputHash,
		FileName1: r.FileName1,
		FileName2: r.FileName2,
		CreatedAt: r.CreatedAt,
	}
	if r.Reports != nil {
		p := r.Reports.PricingReport
		s.HigherRatesForFile1 = len(p.HigherRatesForFile1)
		s.HigherRatesForFile2 = len(p.HigherRatesForFile2)
		s.SameRates = len(p.SameRates)
		s.NonMatchingCodes = len(p.NonMatchingCodes)
		s.MatchedCodes = r.Reports.CodeReport.MatchedCodes
	}
	return s
}

// ReportStore persists comparison runs.
// Lookups return nil, nil when nothing matches.
type ReportStore interface {
	// SaveRun stores a run; ID and CreatedAt are assigned when zero
	SaveRun(ctx context.Context, run *ComparisonRun) error

	// GetRun loads a full run
	GetRun(ctx context.Context, id uuid.UUID) (*ComparisonRun, error)

	// FindRunByHash finds the most recent run with the given input hash
	FindRunByHash(ctx context.Context, hash string) (*ComparisonRun, error)

	// ListRuns returns summaries, newest first; limit <= 0 means no limit
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	Ping(ctx context.Context) error
	Close() error
}

// Prepare assigns an ID and creation time to a run that lacks them
func Prepare(run *ComparisonRun) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
