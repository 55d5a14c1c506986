// Package pipeline orchestrates one scan: load the universe, build
// snapshots, filter, score, rank, persist and notify, tracked through
// an explicit run state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/fundcache"
	"github.com/quantgrid/oppscan/internal/notify"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/internal/scoring"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// ErrRunInProgress is returned when a trigger arrives while another
// run is active. Triggers are rejected, never queued or interleaved.
var ErrRunInProgress = errors.New("a run is already in progress")

// Runner executes scans. At most one run is active at a time; the
// provider, cache, engine, store and composer are injected.
type Runner struct {
	cfg      *rules.Config
	provider contracts.DataProvider
	cache    *fundcache.Cache
	engine   *scoring.Engine
	store    contracts.RunStore
	composer *notify.Composer
	logger   *logger.Logger

	rulesHash string
	now       func() time.Time

	runMu sync.Mutex
}

// NewRunner wires a runner from its collaborators. rulesHash is the
// hash of the rule set snapshot stored with each run.
func NewRunner(
	cfg *rules.Config,
	provider contracts.DataProvider,
	cache *fundcache.Cache,
	engine *scoring.Engine,
	store contracts.RunStore,
	composer *notify.Composer,
	rulesHash string,
	log *logger.Logger,
) *Runner {
	return &Runner{
		cfg:       cfg,
		provider:  provider,
		cache:     cache,
		engine:    engine,
		store:     store,
		composer:  composer,
		rulesHash: rulesHash,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Busy reports whether a run is currently active. Callers racing this
// check still get ErrRunInProgress from Run itself.
func (r *Runner) Busy() bool {
	if r.runMu.TryLock() {
		r.runMu.Unlock()
		return false
	}
	return true
}

// Run executes one scan. The returned RunResult is terminal: COMPLETED
// on success, FAILED with the causing error otherwise. A second
// trigger while a run is active gets ErrRunInProgress.
func (r *Runner) Run(ctx context.Context, runType contracts.RunType) (*contracts.RunResult, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	start := r.now()
	result := &contracts.RunResult{
		RunID:       uuid.NewString(),
		RunType:     runType,
		StartedAt:   start,
		AsOf:        start,
		State:       contracts.StateStarted,
		Skipped:     make(map[string]string),
		FilteredOut: make(map[string]int),
		RulesHash:   r.rulesHash,
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"run_type": string(runType),
	}).Info("Scan started")

	// Universe
	universe, err := r.provider.GetUniverse(ctx)
	if err != nil {
		return r.fail(ctx, result, false, &contracts.ProviderError{Op: "load universe", Err: err})
	}
	result.UniverseSize = len(universe)
	r.transition(result, contracts.StateUniverseLoaded)
	if len(universe) == 0 {
		r.logger.WithField("run_id", result.RunID).Warn("Universe is empty")
	}

	// Snapshots: one batched price call, then cached-or-fresh
	// fundamentals per symbol with bounded concurrency. Per-symbol
	// failures skip the symbol and never abort the run.
	snapshots, err := r.buildSnapshots(ctx, universe, result)
	if err != nil {
		return r.fail(ctx, result, false, err)
	}

	// Filters
	checks := buildFilters(r.cfg)
	var passing []*contracts.Snapshot
	for _, snap := range snapshots {
		if name, ok := applyFilters(checks, snap); !ok {
			result.FilteredOut[name]++
			continue
		}
		passing = append(passing, snap)
	}
	result.PassedFilterCount = len(passing)
	r.transition(result, contracts.StateFiltered)

	// Scoring
	ranked, err := r.scoreAll(ctx, passing, result)
	if err != nil {
		return r.fail(ctx, result, false, err)
	}
	r.transition(result, contracts.StateScored)

	// Ranking: final score descending, symbol ascending on ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].Symbol < ranked[j].Symbol
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	result.Ranked = ranked

	topN := r.cfg.Output.TopN
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}
	result.TopN = ranked[:topN]
	r.transition(result, contracts.StateRanked)

	// Persist
	if err := r.store.SaveRun(ctx, result); err != nil {
		return r.fail(ctx, result, false, err)
	}
	r.transition(result, contracts.StatePersisted)

	// Notify
	if r.cfg.Notifications.Enabled {
		if err := r.composer.Notify(ctx, result); err != nil {
			return r.fail(ctx, result, true, err)
		}
		r.transition(result, contracts.StateNotified)
	}

	result.CompletedAt = r.now()
	r.transition(result, contracts.StateCompleted)
	if err := r.store.CompleteRun(ctx, result); err != nil {
		r.logger.WithError(err).WithField("run_id", result.RunID).Error("Failed to record run completion")
		return result, err
	}

	r.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"universe": result.UniverseSize,
		"passed":   result.PassedFilterCount,
		"ranked":   len(result.Ranked),
		"skipped":  len(result.Skipped),
		"duration": result.CompletedAt.Sub(result.StartedAt),
	}).Info("Scan completed")

	return result, nil
}

// buildSnapshots merges one batched price call with per-symbol
// fundamentals served through the cache.
func (r *Runner) buildSnapshots(ctx context.Context, universe []string, result *contracts.RunResult) ([]*contracts.Snapshot, error) {
	if len(universe) == 0 {
		return nil, nil
	}

	quotes, err := r.provider.GetPriceBatch(ctx, universe)
	if err != nil {
		return nil, &contracts.ProviderError{Op: "batch prices", Err: err}
	}

	concurrency := r.cfg.DataProvider.FetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	snapshots := make([]*contracts.Snapshot, 0, len(universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, symbol := range universe {
		symbol := symbol
		g.Go(func() error {
			fund, stale, err := r.cache.GetOrRefresh(gctx, symbol, r.provider.GetFundamentals)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Skipped[symbol] = fmt.Sprintf("fundamentals unavailable: %v", err)
				r.logger.WithError(err).WithField("symbol", symbol).Warn("Skipping symbol")
				return nil
			}

			snap := &contracts.Snapshot{
				Fundamentals:      *fund,
				StaleFundamentals: stale,
			}
			if quote, ok := quotes[symbol]; ok {
				snap.Price = quote.Price
			}
			snapshots = append(snapshots, snap)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The concurrent appends above scramble order; restore universe
	// order so downstream processing is deterministic.
	index := make(map[string]int, len(universe))
	for i, s := range universe {
		index[s] = i
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return index[snapshots[i].Symbol] < index[snapshots[j].Symbol]
	})

	return snapshots, nil
}

func (r *Runner) scoreAll(ctx context.Context, passing []*contracts.Snapshot, result *contracts.RunResult) ([]contracts.ScoreBreakdown, error) {
	lookback := r.cfg.DataProvider.EventsLookbackDays
	if lookback <= 0 {
		lookback = 90
	}
	since := result.AsOf.AddDate(0, 0, -lookback)

	ranked := make([]contracts.ScoreBreakdown, 0, len(passing))
	for _, snap := range passing {
		var events []contracts.Event
		if r.cfg.DataProvider.EventsEnabled {
			var err error
			events, err = r.provider.GetEvents(ctx, snap.Symbol, since)
			if err != nil {
				result.Skipped[snap.Symbol] = fmt.Sprintf("events unavailable: %v", err)
				result.PassedFilterCount--
				r.logger.WithError(err).WithField("symbol", snap.Symbol).Warn("Skipping symbol")
				continue
			}
		}

		breakdown := r.engine.Score(snap, events, result.AsOf)
		ranked = append(ranked, breakdown)
	}

	return ranked, ctx.Err()
}

// transition moves the run to the next state, guarding against illegal
// jumps.
func (r *Runner) transition(result *contracts.RunResult, next contracts.RunState) {
	if !result.State.CanTransition(next) {
		r.logger.WithFields(map[string]interface{}{
			"run_id": result.RunID,
			"from":   string(result.State),
			"to":     string(next),
		}).Error("Illegal run state transition")
		return
	}
	result.State = next
	r.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"state":  string(next),
	}).Debug("Run state changed")
}

// fail marks the run FAILED and records it. persisted indicates the
// run row already exists, so only the terminal state needs updating;
// otherwise the whole failed result is saved for the run history.
func (r *Runner) fail(ctx context.Context, result *contracts.RunResult, persisted bool, cause error) (*contracts.RunResult, error) {
	result.Error = cause.Error()
	result.CompletedAt = r.now()
	r.transition(result, contracts.StateFailed)

	var persistErr error
	if persisted {
		persistErr = r.store.CompleteRun(ctx, result)
	} else {
		persistErr = r.store.SaveRun(ctx, result)
	}
	if persistErr != nil {
		r.logger.WithError(persistErr).WithField("run_id", result.RunID).Error("Failed to record failed run")
	}

	r.logger.WithError(cause).WithField("run_id", result.RunID).Error("Scan failed")
	return result, cause
}
