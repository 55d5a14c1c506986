package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// Store persists run results in the runs and recommendations tables.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store over the given pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// SaveRun writes the run row and its full ranked list in one
// transaction. Re-saving the same run replaces its recommendations.
func (s *Store) SaveRun(ctx context.Context, result *contracts.RunResult) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &contracts.PersistenceError{Op: "begin save run", Err: err}
	}
	defer tx.Rollback(ctx)

	skippedJSON, err := json.Marshal(result.Skipped)
	if err != nil {
		return &contracts.PersistenceError{Op: "marshal skipped", Err: err}
	}
	filteredJSON, err := json.Marshal(result.FilteredOut)
	if err != nil {
		return &contracts.PersistenceError{Op: "marshal filtered", Err: err}
	}

	runQuery := `
		INSERT INTO runs (
			run_id, run_type, state, error,
			started_at, completed_at, as_of,
			universe_size, passed_filter_count, top_n,
			skipped, filtered_out, rules_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at,
			universe_size = EXCLUDED.universe_size,
			passed_filter_count = EXCLUDED.passed_filter_count,
			top_n = EXCLUDED.top_n,
			skipped = EXCLUDED.skipped,
			filtered_out = EXCLUDED.filtered_out,
			rules_hash = EXCLUDED.rules_hash
	`

	_, err = tx.Exec(ctx, runQuery,
		result.RunID,
		string(result.RunType),
		string(result.State),
		result.Error,
		result.StartedAt,
		nullableTime(result.CompletedAt),
		result.AsOf,
		result.UniverseSize,
		result.PassedFilterCount,
		len(result.TopN),
		skippedJSON,
		filteredJSON,
		result.RulesHash,
	)
	if err != nil {
		return &contracts.PersistenceError{Op: "insert run", Err: err}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM recommendations WHERE run_id = $1`, result.RunID); err != nil {
		return &contracts.PersistenceError{Op: "clear recommendations", Err: err}
	}

	recQuery := `
		INSERT INTO recommendations (
			run_id, rank, symbol, name, exchange, sector,
			market_cap_cr, pe, price,
			final_score, components, reasons,
			event_count, stale_fundamentals
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, rec := range result.Ranked {
		componentsJSON, err := json.Marshal(rec.Components)
		if err != nil {
			return &contracts.PersistenceError{Op: "marshal components", Err: err}
		}
		reasonsJSON, err := json.Marshal(rec.Reasons)
		if err != nil {
			return &contracts.PersistenceError{Op: "marshal reasons", Err: err}
		}

		_, err = tx.Exec(ctx, recQuery,
			result.RunID,
			rec.Rank,
			rec.Symbol,
			rec.Name,
			rec.Exchange,
			rec.Sector,
			rec.MarketCapCr,
			rec.PE,
			rec.Price,
			rec.FinalScore,
			componentsJSON,
			reasonsJSON,
			rec.EventCount,
			rec.StaleFundamentals,
		)
		if err != nil {
			return &contracts.PersistenceError{Op: fmt.Sprintf("insert recommendation %s", rec.Symbol), Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &contracts.PersistenceError{Op: "commit save run", Err: err}
	}

	return nil
}

// CompleteRun updates the terminal state of an already-saved run.
func (s *Store) CompleteRun(ctx context.Context, result *contracts.RunResult) error {
	query := `
		UPDATE runs SET
			state = $2,
			error = $3,
			completed_at = $4
		WHERE run_id = $1
	`

	tag, err := s.db.Exec(ctx, query,
		result.RunID,
		string(result.State),
		result.Error,
		nullableTime(result.CompletedAt),
	)
	if err != nil {
		return &contracts.PersistenceError{Op: "complete run", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return &contracts.PersistenceError{Op: "complete run", Err: fmt.Errorf("run %s not found", result.RunID)}
	}

	return nil
}

// GetRun loads one run and its recommendations.
func (s *Store) GetRun(ctx context.Context, runID string) (*contracts.RunResult, error) {
	return s.queryRun(ctx, `WHERE run_id = $1`, runID)
}

// LatestRun loads the most recently started run, or (nil, nil) when no
// runs exist.
func (s *Store) LatestRun(ctx context.Context) (*contracts.RunResult, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return s.GetRun(ctx, runs[0].RunID)
}

// ListRuns returns run summaries in reverse start order, without
// recommendation rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*contracts.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, run_type, state, error,
			started_at, completed_at, as_of,
			universe_size, passed_filter_count,
			skipped, filtered_out, rules_hash
		FROM runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, &contracts.PersistenceError{Op: "list runs", Err: err}
	}
	defer rows.Close()

	var results []*contracts.RunResult
	for rows.Next() {
		result, err := scanRun(rows)
		if err != nil {
			return nil, &contracts.PersistenceError{Op: "scan run", Err: err}
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, &contracts.PersistenceError{Op: "list runs", Err: err}
	}

	return results, nil
}

func (s *Store) queryRun(ctx context.Context, where string, args ...interface{}) (*contracts.RunResult, error) {
	query := `
		SELECT run_id, run_type, state, error,
			started_at, completed_at, as_of,
			universe_size, passed_filter_count,
			skipped, filtered_out, rules_hash
		FROM runs ` + where

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &contracts.PersistenceError{Op: "query run", Err: err}
	}

	result, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (*contracts.RunResult, error) {
		return scanRun(row)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &contracts.PersistenceError{Op: "scan run", Err: err}
	}

	var topN int
	if err := s.db.QueryRow(ctx, `SELECT top_n FROM runs WHERE run_id = $1`, result.RunID).Scan(&topN); err != nil {
		return nil, &contracts.PersistenceError{Op: "query run top_n", Err: err}
	}

	if err := s.loadRecommendations(ctx, result, topN); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) loadRecommendations(ctx context.Context, result *contracts.RunResult, topN int) error {
	query := `
		SELECT rank, symbol, name, exchange, sector,
			market_cap_cr, pe, price,
			final_score, components, reasons,
			event_count, stale_fundamentals
		FROM recommendations
		WHERE run_id = $1
		ORDER BY rank ASC
	`

	rows, err := s.db.Query(ctx, query, result.RunID)
	if err != nil {
		return &contracts.PersistenceError{Op: "query recommendations", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var rec contracts.ScoreBreakdown
		var componentsJSON, reasonsJSON []byte

		err := rows.Scan(
			&rec.Rank,
			&rec.Symbol,
			&rec.Name,
			&rec.Exchange,
			&rec.Sector,
			&rec.MarketCapCr,
			&rec.PE,
			&rec.Price,
			&rec.FinalScore,
			&componentsJSON,
			&reasonsJSON,
			&rec.EventCount,
			&rec.StaleFundamentals,
		)
		if err != nil {
			return &contracts.PersistenceError{Op: "scan recommendation", Err: err}
		}

		if err := json.Unmarshal(componentsJSON, &rec.Components); err != nil {
			return &contracts.PersistenceError{Op: "unmarshal components", Err: err}
		}
		if len(reasonsJSON) > 0 {
			if err := json.Unmarshal(reasonsJSON, &rec.Reasons); err != nil {
				return &contracts.PersistenceError{Op: "unmarshal reasons", Err: err}
			}
		}

		result.Ranked = append(result.Ranked, rec)
	}
	if err := rows.Err(); err != nil {
		return &contracts.PersistenceError{Op: "query recommendations", Err: err}
	}

	if topN > len(result.Ranked) {
		topN = len(result.Ranked)
	}
	result.TopN = result.Ranked[:topN]

	return nil
}

func scanRun(row pgx.Row) (*contracts.RunResult, error) {
	result := &contracts.RunResult{}
	var runType, state string
	var completedAt *time.Time
	var skippedJSON, filteredJSON []byte

	err := row.Scan(
		&result.RunID,
		&runType,
		&state,
		&result.Error,
		&result.StartedAt,
		&completedAt,
		&result.AsOf,
		&result.UniverseSize,
		&result.PassedFilterCount,
		&skippedJSON,
		&filteredJSON,
		&result.RulesHash,
	)
	if err != nil {
		return nil, err
	}

	result.RunType = contracts.RunType(runType)
	result.State = contracts.RunState(state)
	if completedAt != nil {
		result.CompletedAt = *completedAt
	}

	if len(skippedJSON) > 0 {
		if err := json.Unmarshal(skippedJSON, &result.Skipped); err != nil {
			return nil, fmt.Errorf("unmarshal skipped: %w", err)
		}
	}
	if len(filteredJSON) > 0 {
		if err := json.Unmarshal(filteredJSON, &result.FilteredOut); err != nil {
			return nil, fmt.Errorf("unmarshal filtered: %w", err)
		}
	}

	return result, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
