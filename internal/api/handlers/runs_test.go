package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/fundcache"
	"github.com/quantgrid/oppscan/internal/notify"
	"github.com/quantgrid/oppscan/internal/pipeline"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/internal/runstore"
	"github.com/quantgrid/oppscan/internal/scoring"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// emptyProvider serves an empty universe so triggered runs complete
// immediately.
type emptyProvider struct{}

func (emptyProvider) GetUniverse(context.Context) ([]string, error) { return nil, nil }

func (emptyProvider) GetPriceBatch(context.Context, []string) (map[string]contracts.PriceQuote, error) {
	return nil, nil
}

func (emptyProvider) GetFundamentals(context.Context, string) (*contracts.Fundamentals, error) {
	return nil, nil
}

func (emptyProvider) GetEvents(context.Context, string, time.Time) ([]contracts.Event, error) {
	return nil, nil
}

func newRunsHandler(t *testing.T, store contracts.RunStore) *RunsHandler {
	t.Helper()
	log := logger.NewNop()
	cfg := rules.Default()

	cache := fundcache.New(fundcache.NewMemoryStore(), 24*time.Hour, log)
	engine := scoring.NewEngine(cfg, log)
	composer, err := notify.New(cfg.Notifications, config.TwilioConfig{}, nil, log)
	require.NoError(t, err)

	runner := pipeline.NewRunner(cfg, emptyProvider{}, cache, engine, store, composer, "testhash", log)
	return NewRunsHandler(store, runner, log)
}

func seedRun(t *testing.T, store contracts.RunStore, id string, startedAt time.Time) {
	t.Helper()
	require.NoError(t, store.SaveRun(context.Background(), &contracts.RunResult{
		RunID:     id,
		RunType:   contracts.RunTypeManual,
		StartedAt: startedAt,
		State:     contracts.StateCompleted,
		Ranked: []contracts.ScoreBreakdown{
			{Symbol: "ALPHA", Rank: 1, FinalScore: 62.5},
		},
	}))
}

func TestListRuns(t *testing.T) {
	store := runstore.NewMemoryStore()
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	seedRun(t, store, "run-1", base)
	seedRun(t, store, "run-2", base.Add(time.Hour))

	h := newRunsHandler(t, store)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var payload struct {
		Runs []contracts.RunResult `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Runs, 2)
	assert.Equal(t, "run-2", payload.Runs[0].RunID, "newest first")
}

func TestListRunsLimit(t *testing.T) {
	store := runstore.NewMemoryStore()
	base := time.Date(2026, 8, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		seedRun(t, store, id, base.Add(time.Duration(i)*time.Hour))
	}

	h := newRunsHandler(t, store)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil))

	var payload struct {
		Runs []contracts.RunResult `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Runs, 1)
}

func TestListRunsEmpty(t *testing.T) {
	h := newRunsHandler(t, runstore.NewMemoryStore())
	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestGetLatest(t *testing.T) {
	store := runstore.NewMemoryStore()
	seedRun(t, store, "run-1", time.Now())

	h := newRunsHandler(t, store)
	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var run contracts.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.RunID)
	require.Len(t, run.Ranked, 1)
}

func TestGetLatestNoRuns(t *testing.T) {
	h := newRunsHandler(t, runstore.NewMemoryStore())
	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/runs/latest", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no runs yet")
}

func TestGetRun(t *testing.T) {
	store := runstore.NewMemoryStore()
	seedRun(t, store, "run-1", time.Now())

	h := newRunsHandler(t, store)
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil), map[string]string{"id": "run-1"})
	rec := httptest.NewRecorder()
	h.GetRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var run contracts.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-1", run.RunID)
}

func TestGetRunNotFound(t *testing.T) {
	h := newRunsHandler(t, runstore.NewMemoryStore())
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/runs/ghost", nil), map[string]string{"id": "ghost"})
	rec := httptest.NewRecorder()
	h.GetRun(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run not found")
}

func TestTriggerAccepted(t *testing.T) {
	h := newRunsHandler(t, runstore.NewMemoryStore())
	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/api/runs/trigger", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "started")
}
