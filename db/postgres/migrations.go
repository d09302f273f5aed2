package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations are applied in order; applied versions are recorded in schema_migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "comparison runs",
		SQL: `CREATE TABLE IF NOT EXISTS comparison_runs (
			id          UUID PRIMARY KEY,
			input_hash  TEXT NOT NULL,
			file_name1  TEXT NOT NULL,
			file_name2  TEXT NOT NULL,
			reports     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Version:     2,
		Description: "run lookup indexes",
		SQL: `CREATE INDEX IF NOT EXISTS comparison_runs_input_hash_idx ON comparison_runs (input_hash);
			CREATE INDEX IF NOT EXISTS comparison_runs_created_at_idx ON comparison_runs (created_at DESC)`,
	},
	{
		Version:     3,
		Description: "denormalized bucket counts",
		SQL: `ALTER TABLE comparison_runs
			ADD COLUMN IF NOT EXISTS higher_file1_count INTEGER NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS higher_file2_count INTEGER NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS same_count INTEGER NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS non_matching_count INTEGER NOT NULL DEFAULT 0,
			ADD COLUMN IF NOT EXISTS matched_codes INTEGER NOT NULL DEFAULT 0`,
	},
}

// CurrentSchemaVersion is the version after all migrations are applied
func CurrentSchemaVersion() int {
	return migrations[len(migrations)-1].Version
}

// Migrate applies pending migrations and returns how many ran
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`,
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
