package rules

// Config is the full rule set for one scan strategy. It is immutable
// per run: the pipeline receives a validated value and a snapshot of
// the raw YAML is stored with every run row.
type Config struct {
	Meta          Meta          `yaml:"meta" json:"meta"`
	DataProvider  DataProvider  `yaml:"data_provider" json:"data_provider"`
	Universe      Universe      `yaml:"universe" json:"universe"`
	Filters       Filters       `yaml:"filters" json:"filters"`
	Weights       Weights       `yaml:"weights" json:"weights"`
	EventWeights  EventWeights  `yaml:"event_weights" json:"event_weights"`
	Decay         Decay         `yaml:"decay" json:"decay"`
	Cache         CacheConfig   `yaml:"cache" json:"cache"`
	Schedules     Schedules     `yaml:"schedules" json:"schedules"`
	Notifications Notifications `yaml:"notifications" json:"notifications"`
	Output        Output        `yaml:"output" json:"output"`
}

// Meta identifies the strategy.
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// DataProvider selects and tunes the market data source.
type DataProvider struct {
	Type               string `yaml:"type" json:"type"` // mock | live
	SymbolsFile        string `yaml:"symbols_file" json:"symbols_file"`
	EventsFile         string `yaml:"events_file" json:"events_file"` // mock mode only

	MaxSymbols         int    `yaml:"max_symbols" json:"max_symbols"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec" json:"request_timeout_sec"`
	EventsLookbackDays int    `yaml:"events_lookback_days" json:"events_lookback_days"`
	EventsEnabled      bool   `yaml:"events_enabled" json:"events_enabled"`
	FetchConcurrency   int    `yaml:"fetch_concurrency" json:"fetch_concurrency"`
}

// Universe narrows the candidate pool before quality filters apply.
// Empty allowlists mean "no restriction".
type Universe struct {
	MinMarketCapCr   float64  `yaml:"min_market_cap_cr" json:"min_market_cap_cr"`
	MaxMarketCapCr   float64  `yaml:"max_market_cap_cr" json:"max_market_cap_cr"`
	Exchanges        []string `yaml:"exchanges" json:"exchanges"`
	SectorsAllowlist []string `yaml:"sectors_allowlist" json:"sectors_allowlist"`
}

// Filters are the hard cuts applied after universe selection. A symbol
// must pass every active predicate; a missing field required by a
// predicate excludes the symbol rather than raising.
type Filters struct {
	ExcludeESM            bool    `yaml:"exclude_esm" json:"exclude_esm"`
	ExcludeLossMaking     bool    `yaml:"exclude_loss_making" json:"exclude_loss_making"`
	MinProfitTTMCr        float64 `yaml:"min_profit_ttm_cr" json:"min_profit_ttm_cr"`
	MinProfitYoYGrowthPct float64 `yaml:"min_profit_yoy_growth_pct" json:"min_profit_yoy_growth_pct"`
	MaxPE                 float64 `yaml:"max_pe" json:"max_pe"`
	MaxPledgePct          float64 `yaml:"max_pledge_pct" json:"max_pledge_pct"`
}

// PositiveWeightTotal is the fixed sum the four positive weights must
// reach. Violations are validation errors, never silently normalized.
const PositiveWeightTotal = 90

// Weights allocates the final score budget across the scoring blocks.
// The four positive blocks sum to PositiveWeightTotal; Risk is a
// separate penalty budget subtracted from the positive sum.
type Weights struct {
	ProfitTrend int `yaml:"profit_trend" json:"profit_trend"`
	Valuation   int `yaml:"valuation" json:"valuation"`
	Events      int `yaml:"events" json:"events"`
	Quality     int `yaml:"quality" json:"quality"`
	Risk        int `yaml:"risk" json:"risk"`
}

// PositiveSum returns the sum of the four positive weights.
func (w Weights) PositiveSum() int {
	return w.ProfitTrend + w.Valuation + w.Events + w.Quality
}

// EventWeights maps event types to base point values on the
// final-score scale. Unknown event types fall back to Default.
type EventWeights struct {
	Points  map[string]float64 `yaml:"points" json:"points"`
	Default float64            `yaml:"default" json:"default"`
}

// PointsFor returns the base points for an event type.
func (ew EventWeights) PointsFor(eventType string) float64 {
	if pts, ok := ew.Points[eventType]; ok {
		return pts
	}
	return ew.Default
}

// Decay controls how event contributions age out.
type Decay struct {
	Mode         string  `yaml:"mode" json:"mode"` // linear | exponential
	WindowDays   int     `yaml:"window_days" json:"window_days"`
	HalfLifeDays float64 `yaml:"half_life_days" json:"half_life_days"`
	MinFactor    float64 `yaml:"min_factor" json:"min_factor"`
}

// CacheConfig controls the fundamentals cache.
type CacheConfig struct {
	TTLDays int `yaml:"ttl_days" json:"ttl_days"`

	// ServeStale keeps a symbol in the ranking (flagged) when its
	// refresh fails but an expired entry exists. When false such
	// symbols are excluded instead.
	ServeStale bool `yaml:"serve_stale" json:"serve_stale"`
}

// Schedules holds the cron expressions driving recurring scans.
type Schedules struct {
	FullScanCron  string `yaml:"full_scan_cron" json:"full_scan_cron"`
	EventScanCron string `yaml:"event_scan_cron" json:"event_scan_cron"`
	Timezone      string `yaml:"timezone" json:"timezone"`
}

// Notifications configures top-picks delivery.
type Notifications struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Mode       string   `yaml:"mode" json:"mode"` // stub | twilio
	Recipients []string `yaml:"recipients" json:"recipients"`
}

// Output bounds the UI-facing result.
type Output struct {
	TopN int `yaml:"top_n" json:"top_n"`
}

// Default returns a rule set matching the shipped config/rules.yaml.
func Default() *Config {
	return &Config{
		Meta: Meta{
			StrategyID: "india_smallcap_v1",
			Version:    "1.0.0",
		},
		DataProvider: DataProvider{
			Type:               "mock",
			SymbolsFile:        "data/sample_stocks.csv",
			EventsFile:         "data/sample_events.csv",
			MaxSymbols:         500,
			RequestTimeoutSec:  12,
			EventsLookbackDays: 90,
			EventsEnabled:      true,
			FetchConcurrency:   4,
		},
		Universe: Universe{
			MinMarketCapCr: 50,
			MaxMarketCapCr: 50000,
			Exchanges:      []string{"NSE", "BSE"},
		},
		Filters: Filters{
			ExcludeESM:            true,
			ExcludeLossMaking:     true,
			MinProfitTTMCr:        1,
			MinProfitYoYGrowthPct: 5,
			MaxPE:                 60,
			MaxPledgePct:          40,
		},
		Weights: Weights{
			ProfitTrend: 35,
			Valuation:   20,
			Events:      25,
			Quality:     10,
			Risk:        10,
		},
		EventWeights: EventWeights{
			Points: map[string]float64{
				"order_win":              10,
				"capacity_expansion":     8,
				"new_plant":              8,
				"subsidiary_launch":      5,
				"preferential_allotment": 6,
				"partnership":            6,
				"acquisition":            7,
				"other":                  0,
			},
			Default: 0,
		},
		Decay: Decay{
			Mode:       "linear",
			WindowDays: 90,
		},
		Cache: CacheConfig{
			TTLDays:    90,
			ServeStale: true,
		},
		Schedules: Schedules{
			FullScanCron:  "30 16 * * 1-5",
			EventScanCron: "*/30 9-15 * * 1-5",
			Timezone:      "Asia/Kolkata",
		},
		Notifications: Notifications{
			Enabled: false,
			Mode:    "stub",
		},
		Output: Output{TopN: 25},
	}
}
