package fundcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists cache entries in the fundamentals_cache
// table. The fundamentals payload is stored as JSONB so cache rows
// survive field additions without a migration.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a store over the given pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, symbol string) (*Entry, error) {
	query := `
		SELECT payload, fetched_at
		FROM fundamentals_cache
		WHERE symbol = $1
	`

	var payload []byte
	entry := &Entry{}
	err := s.db.QueryRow(ctx, query, symbol).Scan(&payload, &entry.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fundamentals cache: %w", err)
	}

	if err := json.Unmarshal(payload, &entry.Fundamentals); err != nil {
		return nil, fmt.Errorf("unmarshal fundamentals: %w", err)
	}

	return entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, symbol string, entry Entry) error {
	payload, err := json.Marshal(entry.Fundamentals)
	if err != nil {
		return fmt.Errorf("marshal fundamentals: %w", err)
	}

	query := `
		INSERT INTO fundamentals_cache (symbol, payload, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			payload = EXCLUDED.payload,
			fetched_at = EXCLUDED.fetched_at
	`

	if _, err := s.db.Exec(ctx, query, symbol, payload, entry.FetchedAt); err != nil {
		return fmt.Errorf("insert fundamentals cache: %w", err)
	}

	return nil
}
