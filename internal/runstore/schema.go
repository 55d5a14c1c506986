package runstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantgrid/oppscan/internal/contracts"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id              TEXT PRIMARY KEY,
		run_type            TEXT NOT NULL,
		state               TEXT NOT NULL,
		error               TEXT NOT NULL DEFAULT '',
		started_at          TIMESTAMPTZ NOT NULL,
		completed_at        TIMESTAMPTZ,
		as_of               TIMESTAMPTZ NOT NULL,
		universe_size       INT NOT NULL DEFAULT 0,
		passed_filter_count INT NOT NULL DEFAULT 0,
		top_n               INT NOT NULL DEFAULT 0,
		skipped             JSONB,
		filtered_out        JSONB,
		rules_hash          TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS recommendations (
		run_id             TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
		rank               INT NOT NULL,
		symbol             TEXT NOT NULL,
		name               TEXT NOT NULL DEFAULT '',
		exchange           TEXT NOT NULL DEFAULT '',
		sector             TEXT NOT NULL DEFAULT '',
		market_cap_cr      DOUBLE PRECISION NOT NULL DEFAULT 0,
		pe                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		price              DOUBLE PRECISION NOT NULL DEFAULT 0,
		final_score        DOUBLE PRECISION NOT NULL,
		components         JSONB NOT NULL,
		reasons            JSONB,
		event_count        INT NOT NULL DEFAULT 0,
		stale_fundamentals BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (run_id, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recommendations_symbol ON recommendations (symbol)`,
	`CREATE TABLE IF NOT EXISTS fundamentals_cache (
		symbol     TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL
	)`,
}

// InitSchema creates the run history and fundamentals cache tables if
// they do not exist. Safe to run repeatedly.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return &contracts.PersistenceError{Op: "init schema", Err: err}
		}
	}
	return nil
}
