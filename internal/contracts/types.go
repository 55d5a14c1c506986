package contracts

import "time"

// Fundamentals is the slow-moving, per-symbol portion of a snapshot.
// It changes quarterly and is served from the fundamentals cache
// between refreshes.
type Fundamentals struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Sector   string `json:"sector"`

	MarketCapCr float64 `json:"market_cap_cr"`
	PE          float64 `json:"pe"`
	BookValue   float64 `json:"book_value"`
	DebtCr      float64 `json:"debt_cr"`
	NetWorthCr  float64 `json:"net_worth_cr"`
	SalesCr     float64 `json:"sales_cr"`
	ROE         float64 `json:"roe"`
	ROCE        float64 `json:"roce"`

	// Trailing 12 months net profit, plus the four most recent quarters
	// in chronological order (oldest first).
	ProfitTTMCr     float64    `json:"profit_ttm_cr"`
	ProfitPrevTTMCr float64    `json:"profit_prev_ttm_cr"`
	ProfitQuarters  [4]float64 `json:"profit_quarters"`

	SalesGrowthPct     float64 `json:"sales_growth_pct"`
	PromoterHoldingPct float64 `json:"promoter_holding_pct"`
	PledgePct          float64 `json:"pledge_pct"`

	ESMFlag        bool `json:"esm_flag"`
	GovernanceFlag bool `json:"governance_flag"`
}

// ProfitYoYGrowthPct returns the trailing-twelve-month profit growth
// rate in percent. A company that swung from losses to profit reports
// 100; one still loss-making reports 0.
func (f *Fundamentals) ProfitYoYGrowthPct() float64 {
	if f.ProfitPrevTTMCr <= 0 {
		if f.ProfitTTMCr > 0 {
			return 100.0
		}
		return 0.0
	}
	return (f.ProfitTTMCr - f.ProfitPrevTTMCr) / f.ProfitPrevTTMCr * 100.0
}

// DebtRatio returns debt over net worth in percent, or 0 when net worth
// is unknown.
func (f *Fundamentals) DebtRatio() float64 {
	if f.NetWorthCr <= 0 {
		return 0
	}
	return f.DebtCr / f.NetWorthCr * 100.0
}

// PriceQuote is the fast-moving portion of a snapshot, fetched fresh
// on every run via a single batched provider call.
type PriceQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Snapshot is the point-in-time view of one stock handed to the scoring
// engine: cached-or-fresh fundamentals merged with a live price quote.
type Snapshot struct {
	Fundamentals

	Price float64 `json:"price"`

	// StaleFundamentals marks snapshots whose fundamentals came from an
	// expired cache entry because the refresh failed. Such symbols stay
	// in the ranking but carry the flag through to the breakdown.
	StaleFundamentals bool `json:"stale_fundamentals,omitempty"`
}

// EventType classifies a corporate event. The set is closed: anything
// the classifier cannot place lands on EventOther.
type EventType string

const (
	EventOrderWin              EventType = "order_win"
	EventCapacityExpansion     EventType = "capacity_expansion"
	EventNewPlant              EventType = "new_plant"
	EventSubsidiaryLaunch      EventType = "subsidiary_launch"
	EventPreferentialAllotment EventType = "preferential_allotment"
	EventPartnership           EventType = "partnership"
	EventAcquisition           EventType = "acquisition"
	EventOther                 EventType = "other"
)

// AllEventTypes returns every event type in a fixed order.
func AllEventTypes() []EventType {
	return []EventType{
		EventOrderWin,
		EventCapacityExpansion,
		EventNewPlant,
		EventSubsidiaryLaunch,
		EventPreferentialAllotment,
		EventPartnership,
		EventAcquisition,
		EventOther,
	}
}

// IsValidEventType checks membership in the closed event-type set.
func IsValidEventType(s string) bool {
	for _, t := range AllEventTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Event is one corporate announcement for one symbol. Immutable once
// ingested.
type Event struct {
	Symbol   string    `json:"symbol"`
	Type     EventType `json:"type"`
	Date     time.Time `json:"date"`
	ValueCr  float64   `json:"value_cr"`
	Headline string    `json:"headline"`
}

// AgeDays returns the event age relative to the run's as-of timestamp,
// never negative.
func (e *Event) AgeDays(asOf time.Time) float64 {
	days := asOf.Sub(e.Date).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// ComponentScores is the per-block score breakdown. Each positive block
// is bounded by its configured weight; Risk is a penalty subtracted from
// the positive sum.
type ComponentScores struct {
	ProfitTrend float64 `json:"profit_trend"`
	Valuation   float64 `json:"valuation"`
	Events      float64 `json:"events"`
	Quality     float64 `json:"quality"`
	Risk        float64 `json:"risk"`
}

// ScoreBreakdown is the immutable scoring result for one symbol in one
// run.
type ScoreBreakdown struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Exchange    string  `json:"exchange"`
	Sector      string  `json:"sector"`
	MarketCapCr float64 `json:"market_cap_cr"`
	PE          float64 `json:"pe"`
	Price       float64 `json:"price"`

	Rank       int             `json:"rank"` // 1-based, assigned after sorting
	Components ComponentScores `json:"components"`
	FinalScore float64         `json:"final_score"`

	// Reasons explains every non-zero contributing factor, ordered by
	// contribution magnitude descending. Required output, not telemetry.
	Reasons []string `json:"reasons"`

	EventCount        int  `json:"event_count"`
	StaleFundamentals bool `json:"stale_fundamentals,omitempty"`
}

// RunType identifies what triggered a pipeline run.
type RunType string

const (
	RunTypeManual    RunType = "manual"
	RunTypeManualAPI RunType = "manual_api"
	RunTypeFullScan  RunType = "scheduled_full_scan"
	RunTypeEventScan RunType = "scheduled_event_scan"
)

// RunResult is the complete output of one pipeline execution. It is
// handed whole to the persistence and notification collaborators.
type RunResult struct {
	RunID   string  `json:"run_id"`
	RunType RunType `json:"run_type"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	AsOf        time.Time `json:"as_of"`

	State RunState `json:"state"`
	Error string   `json:"error,omitempty"`

	UniverseSize      int `json:"universe_size"`
	PassedFilterCount int `json:"passed_filter_count"`

	// Ranked holds the full ordered list for persistence; TopN is the
	// truncated UI-facing slice of the same entries.
	Ranked []ScoreBreakdown `json:"ranked"`
	TopN   []ScoreBreakdown `json:"top_n"`

	// Skipped records symbols dropped mid-run with the reason
	// (provider error, missing fundamentals). Filter exclusions are
	// counted in FilteredOut instead.
	Skipped     map[string]string `json:"skipped,omitempty"`
	FilteredOut map[string]int    `json:"filtered_out,omitempty"` // filter name -> count

	RulesHash string `json:"rules_hash,omitempty"`
}
