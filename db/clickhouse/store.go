// Package clickhouse provides a ClickHouse implementation of storage.ReportStore
// Comparison entries are stored row-per-code for columnar analytics across runs
package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"ratedeck/decision/comparison"
	"ratedeck/db/storage"
)

// Section names a pricing report bucket in comparison_entries
type Section string

const (
	SectionHigherFile1 Section = "higher_file1"
	SectionHigherFile2 Section = "higher_file2"
	SectionSame        Section = "same"
	SectionNonMatching Section = "non_matching"
)

// Config holds ClickHouse connection configuration
type Config struct {
	Host      string
	Port      int
	Database  string
	Username  string
	Password  string
	Debug     bool
	BatchSize int
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:      "localhost",
		Port:      9000,
		Database:  "ratedeck",
		Username:  "default",
		Password:  "",
		Debug:     false,
		BatchSize: 10000,
	}
}

// Store implements storage.ReportStore using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore creates a new ClickHouse report store
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// =============================================================================
// SCHEMA
// =============================================================================

var schema = []string{
	`CREATE TABLE IF NOT EXISTS comparison_runs (
		id UUID,
		input_hash String,
		file_name1 String,
		file_name2 String,
		higher_file1_count UInt32,
		higher_file2_count UInt32,
		same_count UInt32,
		non_matching_count UInt32,
		matched_codes UInt32,
		code_report String,
		created_at DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	ORDER BY (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS comparison_entries (
		run_id UUID,
		section LowCardinality(String),
		position UInt32,
		dial_code String,
		dest_name String,
		rate_file1 Float64,
		rate_file2 Float64,
		percentage_difference Float64,
		file LowCardinality(String)
	) ENGINE = MergeTree
	ORDER BY (run_id, section, position)`,
}

// Migrate creates the archive tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// =============================================================================
// RUN OPERATIONS
// =============================================================================

// runWriter is the pair of inserts that make up a saved run
type runWriter interface {
	insertEntries(ctx context.Context, runID uuid.UUID, rows []entryRow) error
	insertHeader(ctx context.Context, run *storage.ComparisonRun, codeReport []byte) error
}

// SaveRun bulk inserts the run entries, then its header. The header row is
// what FindRunByHash and GetRun look up, so a failed entry batch leaves no
// visible run behind.
func (s *Store) SaveRun(ctx context.Context, run *storage.ComparisonRun) error {
	return saveRun(ctx, s, run)
}

func saveRun(ctx context.Context, w runWriter, run *storage.ComparisonRun) error {
	storage.Prepare(run)
	if run.Reports == nil {
		return fmt.Errorf("run %s has no reports", run.ID)
	}

	codeReport, err := json.Marshal(run.Reports.CodeReport)
	if err != nil {
		return fmt.Errorf("failed to marshal code report: %w", err)
	}

	if err := w.insertEntries(ctx, run.ID, flattenEntries(&run.Reports.PricingReport)); err != nil {
		return err
	}
	return w.insertHeader(ctx, run, codeReport)
}

func (s *Store) insertHeader(ctx context.Context, run *storage.ComparisonRun, codeReport []byte) error {
	summary := run.Summary()
	query := `
		INSERT INTO comparison_runs (
			id, input_hash, file_name1, file_name2,
			higher_file1_count, higher_file2_count, same_count, non_matching_count,
			matched_codes, code_report, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if err := s.conn.Exec(ctx, query,
		run.ID, run.InputHash, run.FileName1, run.FileName2,
		uint32(summary.HigherRatesForFile1), uint32(summary.HigherRatesForFile2),
		uint32(summary.SameRates), uint32(summary.NonMatchingCodes),
		uint32(summary.MatchedCodes), string(codeReport), run.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// entryRow is one comparison_entries row
type entryRow struct {
	Section              Section
	Position             uint32
	DialCode             string
	DestName             string
	RateFile1            float64
	RateFile2            float64
	PercentageDifference float64
	File                 string
}

func flattenEntries(p *comparison.PricingReport) []entryRow {
	rows := make([]entryRow, 0, p.EntryCount())
	add := func(section Section, entries []comparison.ComparisonEntry) {
		for i, e := range entries {
			rows = append(rows, entryRow{
				Section:              section,
				Position:             uint32(i),
				DialCode:             e.DialCode,
				DestName:             e.DestName,
				RateFile1:            e.RateFile1,
				RateFile2:            e.RateFile2,
				PercentageDifference: e.PercentageDifference,
			})
		}
	}
	add(SectionHigherFile1, p.HigherRatesForFile1)
	add(SectionHigherFile2, p.HigherRatesForFile2)
	add(SectionSame, p.SameRates)
	for i, e := range p.NonMatchingCodes {
		rows = append(rows, entryRow{
			Section:   SectionNonMatching,
			Position:  uint32(i),
			DialCode:  e.DialCode,
			DestName:  e.DestName,
			RateFile1: e.Rate,
			File:      string(e.File),
		})
	}
	return rows
}

func (s *Store) insertEntries(ctx context.Context, runID uuid.UUID, rows []entryRow) error {
	for start := 0; start < len(rows); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch, err := s.conn.PrepareBatch(ctx, `
			INSERT INTO comparison_entries (
				run_id, section, position, dial_code, dest_name,
				rate_file1, rate_file2, percentage_difference, file
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}

		for _, r := range rows[start:end] {
			if err := batch.Append(
				runID, string(r.Section), r.Position, r.DialCode, r.DestName,
				r.RateFile1, r.RateFile2, r.PercentageDifference, r.File,
			); err != nil {
				return fmt.Errorf("failed to append to batch: %w", err)
			}
		}

		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
	}
	return nil
}

const runColumns = `id, input_hash, file_name1, file_name2, code_report, created_at`

// GetRun retrieves a run and its entries by ID
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*storage.ComparisonRun, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+runColumns+` FROM comparison_runs WHERE id = ? LIMIT 1`, id)
	return s.scanRun(ctx, row)
}

// FindRunByHash finds the newest run with the given input hash
func (s *Store) FindRunByHash(ctx context.Context, hash string) (*storage.ComparisonRun, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+runColumns+` FROM comparison_runs
		WHERE input_hash = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, hash)
	return s.scanRun(ctx, row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRun(ctx context.Context, row rowScanner) (*storage.ComparisonRun, error) {
	var run storage.ComparisonRun
	var codeReport string
	err := row.Scan(&run.ID, &run.InputHash, &run.FileName1, &run.FileName2, &codeReport, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	reports := &comparison.Reports{
		PricingReport: comparison.PricingReport{
			HigherRatesForFile1: []comparison.ComparisonEntry{},
			HigherRatesForFile2: []comparison.ComparisonEntry{},
			SameRates:           []comparison.ComparisonEntry{},
			NonMatchingCodes:    []comparison.NonMatchingEntry{},
			FileName1:           run.FileName1,
			FileName2:           run.FileName2,
		},
	}
	if err := json.Unmarshal([]byte(codeReport), &reports.CodeReport); err != nil {
		return nil, fmt.Errorf("failed to unmarshal code report: %w", err)
	}
	if err := s.loadEntries(ctx, run.ID, &reports.PricingReport); err != nil {
		return nil, err
	}

	run.Reports = reports
	return &run, nil
}

func (s *Store) loadEntries(ctx context.Context, runID uuid.UUID, p *comparison.PricingReport) error {
	rows, err := s.conn.Query(ctx, `
		SELECT section, dial_code, dest_name, rate_file1, rate_file2, percentage_difference, file
		FROM comparison_entries
		WHERE run_id = ?
		ORDER BY section, position
	`, runID)
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r entryRow
		var section string
		if err := rows.Scan(&section, &r.DialCode, &r.DestName, &r.RateFile1, &r.RateFile2, &r.PercentageDifference, &r.File); err != nil {
			return fmt.Errorf("failed to scan entry: %w", err)
		}

		entry := comparison.ComparisonEntry{
			DialCode:             r.DialCode,
			DestName:             r.DestName,
			RateFile1:            r.RateFile1,
			RateFile2:            r.RateFile2,
			PercentageDifference: r.PercentageDifference,
		}
		switch Section(section) {
		case SectionHigherFile1:
			p.HigherRatesForFile1 = append(p.HigherRatesForFile1, entry)
		case SectionHigherFile2:
			p.HigherRatesForFile2 = append(p.HigherRatesForFile2, entry)
		case SectionSame:
			p.SameRates = append(p.SameRates, entry)
		case SectionNonMatching:
			p.NonMatchingCodes = append(p.NonMatchingCodes, comparison.NonMatchingEntry{
				DialCode: r.DialCode,
				DestName: r.DestName,
				Rate:     r.RateFile1,
				File:     comparison.FileTag(r.File),
			})
		}
	}
	return rows.Err()
}

// ListRuns lists run summaries, newest first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunSummary, error) {
	query := `
		SELECT id, input_hash, file_name1, file_name2,
			   higher_file1_count, higher_file2_count, same_count, non_matching_count,
			   matched_codes, created_at
		FROM comparison_runs
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := []storage.RunSummary{}
	for rows.Next() {
		var sum storage.RunSummary
		var higher1, higher2, same, nonMatching, matched uint32
		if err := rows.Scan(
			&sum.ID, &sum.InputHash, &sum.FileName1, &sum.FileName2,
			&higher1, &higher2, &same, &nonMatching, &matched, &sum.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.HigherRatesForFile1 = int(higher1)
		sum.HigherRatesForFile2 = int(higher2)
		sum.SameRates = int(same)
		sum.NonMatchingCodes = int(nonMatching)
		sum.MatchedCodes = int(matched)
		sum.CreatedAt = sum.CreatedAt.UTC()
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

var _ storage.ReportStore = (*Store)(nil)
