package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/fundcache"
	"github.com/quantgrid/oppscan/internal/notify"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/internal/runstore"
	"github.com/quantgrid/oppscan/internal/scoring"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// fakeProvider serves canned data with per-symbol error injection.
type fakeProvider struct {
	universe    []string
	universeErr error

	quotes    map[string]contracts.PriceQuote
	quotesErr error

	fundamentals map[string]*contracts.Fundamentals
	fundErrs     map[string]error

	events    map[string][]contracts.Event
	eventErrs map[string]error

	// universeStarted/universeRelease let a test hold a run mid-flight.
	universeStarted chan struct{}
	universeRelease chan struct{}
}

func (p *fakeProvider) GetUniverse(context.Context) ([]string, error) {
	if p.universeStarted != nil {
		close(p.universeStarted)
		<-p.universeRelease
	}
	if p.universeErr != nil {
		return nil, p.universeErr
	}
	return p.universe, nil
}

func (p *fakeProvider) GetPriceBatch(_ context.Context, symbols []string) (map[string]contracts.PriceQuote, error) {
	if p.quotesErr != nil {
		return nil, p.quotesErr
	}
	out := make(map[string]contracts.PriceQuote, len(symbols))
	for _, s := range symbols {
		if q, ok := p.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (p *fakeProvider) GetFundamentals(_ context.Context, symbol string) (*contracts.Fundamentals, error) {
	if err, ok := p.fundErrs[symbol]; ok {
		return nil, err
	}
	f, ok := p.fundamentals[symbol]
	if !ok {
		return nil, &contracts.ProviderError{Op: "fundamentals", Symbol: symbol, Err: errors.New("not found")}
	}
	clone := *f
	return &clone, nil
}

func (p *fakeProvider) GetEvents(_ context.Context, symbol string, _ time.Time) ([]contracts.Event, error) {
	if err, ok := p.eventErrs[symbol]; ok {
		return nil, err
	}
	return p.events[symbol], nil
}

func goodFundamentals(symbol string) *contracts.Fundamentals {
	return &contracts.Fundamentals{
		Symbol:          symbol,
		Name:            symbol + " Ltd",
		Exchange:        "NSE",
		Sector:          "Capital Goods",
		MarketCapCr:     1200,
		PE:              15,
		ROE:             20,
		ROCE:            22,
		DebtCr:          20,
		NetWorthCr:      100,
		ProfitTTMCr:     46,
		ProfitPrevTTMCr: 40,
		ProfitQuarters:  [4]float64{10, 11, 12, 13},
	}
}

func testRules() *rules.Config {
	cfg := rules.Default()
	cfg.DataProvider.FetchConcurrency = 2
	cfg.Notifications.Enabled = false
	return cfg
}

type runnerFixture struct {
	runner *Runner
	store  *runstore.MemoryStore
	cache  *fundcache.Cache
}

func newFixture(t *testing.T, cfg *rules.Config, provider contracts.DataProvider) *runnerFixture {
	t.Helper()
	log := logger.NewNop()

	store := runstore.NewMemoryStore()
	cache := fundcache.New(fundcache.NewMemoryStore(), 90*24*time.Hour, log)
	engine := scoring.NewEngine(cfg, log)

	composer, err := notify.New(cfg.Notifications, config.TwilioConfig{}, nil, log)
	require.NoError(t, err)

	runner := NewRunner(cfg, provider, cache, engine, store, composer, "testhash", log)
	return &runnerFixture{runner: runner, store: store, cache: cache}
}

func TestRunHappyPath(t *testing.T) {
	expensive := goodFundamentals("BETA")
	expensive.PE = 80 // fails max_pe

	provider := &fakeProvider{
		universe: []string{"ALPHA", "BETA"},
		quotes: map[string]contracts.PriceQuote{
			"ALPHA": {Symbol: "ALPHA", Price: 450},
			"BETA":  {Symbol: "BETA", Price: 1210},
		},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
			"BETA":  expensive,
		},
	}

	fx := newFixture(t, testRules(), provider)
	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
	assert.Equal(t, 2, result.UniverseSize)
	assert.Equal(t, 1, result.PassedFilterCount)
	assert.Equal(t, 1, result.FilteredOut["max_pe"])
	assert.Empty(t, result.Skipped)
	assert.Equal(t, "testhash", result.RulesHash)

	require.Len(t, result.Ranked, 1)
	assert.Equal(t, "ALPHA", result.Ranked[0].Symbol)
	assert.Equal(t, 1, result.Ranked[0].Rank)
	assert.Equal(t, 450.0, result.Ranked[0].Price)
	assert.NotEmpty(t, result.Ranked[0].Reasons)

	stored, err := fx.store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.RunID, stored.RunID)
	assert.Equal(t, contracts.StateCompleted, stored.State)
	assert.False(t, stored.CompletedAt.IsZero())
}

func TestRunUniverseErrorFailsRun(t *testing.T) {
	provider := &fakeProvider{universeErr: errors.New("feed is down")}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.Error(t, err)
	assert.True(t, contracts.IsProviderError(err))
	assert.Equal(t, contracts.StateFailed, result.State)
	assert.Contains(t, result.Error, "feed is down")

	// Failed runs still land in the run history.
	stored, storeErr := fx.store.LatestRun(context.Background())
	require.NoError(t, storeErr)
	assert.Equal(t, contracts.StateFailed, stored.State)
}

func TestRunPriceBatchErrorFailsRun(t *testing.T) {
	provider := &fakeProvider{
		universe:  []string{"ALPHA"},
		quotesErr: errors.New("quote api 503"),
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
		},
	}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.Error(t, err)
	assert.True(t, contracts.IsProviderError(err))
	assert.Equal(t, contracts.StateFailed, result.State)
}

func TestRunFundamentalsErrorSkipsSymbol(t *testing.T) {
	provider := &fakeProvider{
		universe: []string{"ALPHA", "BROKEN"},
		quotes: map[string]contracts.PriceQuote{
			"ALPHA": {Symbol: "ALPHA", Price: 450},
		},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
		},
		fundErrs: map[string]error{
			"BROKEN": &contracts.ProviderError{Op: "fundamentals", Symbol: "BROKEN", Err: errors.New("timeout")},
		},
	}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
	assert.Contains(t, result.Skipped, "BROKEN")
	require.Len(t, result.Ranked, 1)
	assert.Equal(t, "ALPHA", result.Ranked[0].Symbol)
}

func TestRunEventErrorSkipsSymbolAfterFilters(t *testing.T) {
	provider := &fakeProvider{
		universe: []string{"ALPHA", "GAMMA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
			"GAMMA": goodFundamentals("GAMMA"),
		},
		eventErrs: map[string]error{
			"GAMMA": &contracts.ProviderError{Op: "events", Symbol: "GAMMA", Err: errors.New("timeout")},
		},
	}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
	assert.Contains(t, result.Skipped, "GAMMA")
	assert.Equal(t, 1, result.PassedFilterCount, "skipped symbols leave the passed count")
	require.Len(t, result.Ranked, 1)
	assert.Equal(t, "ALPHA", result.Ranked[0].Symbol)
}

func TestRunEmptyUniverseCompletes(t *testing.T) {
	fx := newFixture(t, testRules(), &fakeProvider{})

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
	assert.Zero(t, result.UniverseSize)
	assert.Zero(t, result.PassedFilterCount)
	assert.Empty(t, result.Ranked)
	assert.Empty(t, result.TopN)
}

func TestRunTieBreaksOnSymbol(t *testing.T) {
	provider := &fakeProvider{
		universe: []string{"ZETA", "ALPHA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ZETA":  goodFundamentals("ZETA"),
			"ALPHA": goodFundamentals("ALPHA"),
		},
	}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, result.Ranked[0].FinalScore, result.Ranked[1].FinalScore)
	assert.Equal(t, "ALPHA", result.Ranked[0].Symbol)
	assert.Equal(t, "ZETA", result.Ranked[1].Symbol)
	assert.Equal(t, 1, result.Ranked[0].Rank)
	assert.Equal(t, 2, result.Ranked[1].Rank)
}

func TestRunTopNTruncates(t *testing.T) {
	cfg := testRules()
	cfg.Output.TopN = 1

	provider := &fakeProvider{
		universe: []string{"ALPHA", "BETA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
			"BETA":  goodFundamentals("BETA"),
		},
	}
	fx := newFixture(t, cfg, provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Len(t, result.Ranked, 2)
	require.Len(t, result.TopN, 1)
	assert.Equal(t, "ALPHA", result.TopN[0].Symbol)
}

func TestRunEventsContributeToScore(t *testing.T) {
	asOf := time.Now()
	provider := &fakeProvider{
		universe: []string{"ALPHA", "BETA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
			"BETA":  goodFundamentals("BETA"),
		},
		events: map[string][]contracts.Event{
			"BETA": {
				{Symbol: "BETA", Type: contracts.EventOrderWin, Date: asOf.AddDate(0, 0, -2), ValueCr: 250},
			},
		},
	}
	fx := newFixture(t, testRules(), provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "BETA", result.Ranked[0].Symbol, "a fresh order win outranks the tie")
	assert.Equal(t, 1, result.Ranked[0].EventCount)
	assert.Greater(t, result.Ranked[0].Components.Events, 0.0)
}

func TestRunRejectsConcurrentTrigger(t *testing.T) {
	provider := &fakeProvider{
		universeStarted: make(chan struct{}),
		universeRelease: make(chan struct{}),
	}
	fx := newFixture(t, testRules(), provider)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := fx.runner.Run(context.Background(), contracts.RunTypeFullScan)
		assert.NoError(t, err)
	}()

	<-provider.universeStarted
	assert.True(t, fx.runner.Busy())

	_, err := fx.runner.Run(context.Background(), contracts.RunTypeManualAPI)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(provider.universeRelease)
	wg.Wait()
	assert.False(t, fx.runner.Busy())
}

func TestRunNotifyConfigErrorFailsAfterPersist(t *testing.T) {
	cfg := testRules()
	cfg.Notifications = rules.Notifications{
		Enabled:    true,
		Mode:       "twilio",
		Recipients: []string{"+911234567890"},
	}

	provider := &fakeProvider{
		universe: []string{"ALPHA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
		},
	}
	// No twilio credentials in the environment config: the credential
	// check must fail the run after persistence, before any send.
	fx := newFixture(t, cfg, provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.Error(t, err)
	assert.True(t, contracts.IsConfigurationError(err))
	assert.Equal(t, contracts.StateFailed, result.State)

	// The ranked output survives: persistence happened before notify.
	stored, storeErr := fx.store.LatestRun(context.Background())
	require.NoError(t, storeErr)
	assert.Equal(t, contracts.StateFailed, stored.State)
	assert.Len(t, stored.Ranked, 1)
}

func TestRunStubNotificationCompletes(t *testing.T) {
	cfg := testRules()
	cfg.Notifications = rules.Notifications{
		Enabled:    true,
		Mode:       "stub",
		Recipients: []string{"+911234567890"},
	}

	provider := &fakeProvider{
		universe: []string{"ALPHA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
		},
	}
	fx := newFixture(t, cfg, provider)

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
}

func TestRunServesStaleFundamentalsFlagged(t *testing.T) {
	log := logger.NewNop()
	cfg := testRules()

	provider := &fakeProvider{
		universe: []string{"ALPHA"},
		fundErrs: map[string]error{
			"ALPHA": &contracts.ProviderError{Op: "fundamentals", Symbol: "ALPHA", Err: errors.New("scrape blocked")},
		},
	}

	// Seed an entry already past the TTL, then make the refresh fail.
	fundStore := fundcache.NewMemoryStore()
	fetchedAt := time.Now().Add(-91 * 24 * time.Hour)
	require.NoError(t, fundStore.Put(context.Background(), "ALPHA", fundcache.Entry{
		Fundamentals: *goodFundamentals("ALPHA"),
		FetchedAt:    fetchedAt,
	}))
	cache := fundcache.New(fundStore, 90*24*time.Hour, log)

	store := runstore.NewMemoryStore()
	engine := scoring.NewEngine(cfg, log)
	composer, err := notify.New(cfg.Notifications, config.TwilioConfig{}, nil, log)
	require.NoError(t, err)

	runner := NewRunner(cfg, provider, cache, engine, store, composer, "testhash", log)
	result, err := runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, contracts.StateCompleted, result.State)
	require.Len(t, result.Ranked, 1)
	assert.True(t, result.Ranked[0].StaleFundamentals)
}

func TestRunRecordsCompletionTimes(t *testing.T) {
	now := time.Date(2026, 8, 14, 16, 30, 0, 0, time.UTC)
	provider := &fakeProvider{
		universe: []string{"ALPHA"},
		fundamentals: map[string]*contracts.Fundamentals{
			"ALPHA": goodFundamentals("ALPHA"),
		},
	}

	fx := newFixture(t, testRules(), provider)
	fx.runner.WithClock(func() time.Time { return now })

	result, err := fx.runner.Run(context.Background(), contracts.RunTypeManual)

	require.NoError(t, err)
	assert.Equal(t, now, result.StartedAt)
	assert.Equal(t, now, result.AsOf)
	assert.Equal(t, now, result.CompletedAt)
	assert.NotEmpty(t, result.RunID)
}
