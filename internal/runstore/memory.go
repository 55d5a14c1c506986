package runstore

import (
	"context"
	"sort"
	"sync"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// MemoryStore keeps run results in process memory. It backs the scan
// command when no database is configured, and the pipeline tests.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*contracts.RunResult
}

// NewMemoryStore creates an empty in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*contracts.RunResult)}
}

func (s *MemoryStore) SaveRun(_ context.Context, result *contracts.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *result
	clone.Ranked = append([]contracts.ScoreBreakdown(nil), result.Ranked...)
	clone.TopN = append([]contracts.ScoreBreakdown(nil), result.TopN...)
	s.runs[result.RunID] = &clone
	return nil
}

func (s *MemoryStore) CompleteRun(_ context.Context, result *contracts.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.runs[result.RunID]
	if !ok {
		return &contracts.PersistenceError{Op: "complete run", Err: errRunNotFound(result.RunID)}
	}
	stored.State = result.State
	stored.Error = result.Error
	stored.CompletedAt = result.CompletedAt
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (*contracts.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.runs[runID]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (s *MemoryStore) LatestRun(_ context.Context) (*contracts.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *contracts.RunResult
	for _, r := range s.runs {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]*contracts.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	results := make([]*contracts.RunResult, 0, len(s.runs))
	for _, r := range s.runs {
		clone := *r
		results = append(results, &clone)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type errRunNotFound string

func (e errRunNotFound) Error() string {
	return "run " + string(e) + " not found"
}
