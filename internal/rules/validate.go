package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// Warning flags a recommended-but-not-required constraint violation.
type Warning struct {
	Code    string
	Message string
}

// Validate checks every hard constraint on the rule set. The pipeline
// refuses to start on any error; weights are never normalized to fit.
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return &contracts.ConfigurationError{Field: "meta.strategy_id", Message: "required"}
	}

	// === DataProvider ===
	switch cfg.DataProvider.Type {
	case "mock", "live":
	default:
		return &contracts.ConfigurationError{Field: "data_provider.type", Message: "must be mock or live"}
	}
	if cfg.DataProvider.RequestTimeoutSec <= 0 {
		return &contracts.ConfigurationError{Field: "data_provider.request_timeout_sec", Message: "must be > 0"}
	}
	if cfg.DataProvider.EventsLookbackDays <= 0 {
		return &contracts.ConfigurationError{Field: "data_provider.events_lookback_days", Message: "must be > 0"}
	}
	if cfg.DataProvider.FetchConcurrency < 1 {
		return &contracts.ConfigurationError{Field: "data_provider.fetch_concurrency", Message: "must be >= 1"}
	}

	// === Universe ===
	if cfg.Universe.MinMarketCapCr < 0 {
		return &contracts.ConfigurationError{Field: "universe.min_market_cap_cr", Message: "must be >= 0"}
	}
	if cfg.Universe.MaxMarketCapCr > 0 && cfg.Universe.MaxMarketCapCr < cfg.Universe.MinMarketCapCr {
		return &contracts.ConfigurationError{Field: "universe.max_market_cap_cr", Message: "must be >= min_market_cap_cr"}
	}

	// === Weights ===
	w := cfg.Weights
	if w.ProfitTrend < 0 || w.Valuation < 0 || w.Events < 0 || w.Quality < 0 {
		return &contracts.ConfigurationError{Field: "weights", Message: "positive block weights must be >= 0"}
	}
	if w.PositiveSum() != PositiveWeightTotal {
		return &contracts.ConfigurationError{
			Field:   "weights",
			Message: fmt.Sprintf("positive weights must sum to %d, got %d", PositiveWeightTotal, w.PositiveSum()),
		}
	}
	if w.Risk < 0 {
		return &contracts.ConfigurationError{Field: "weights.risk", Message: "must be >= 0"}
	}

	// === EventWeights ===
	for name, pts := range cfg.EventWeights.Points {
		if !contracts.IsValidEventType(name) {
			return &contracts.ConfigurationError{
				Field:   "event_weights.points." + name,
				Message: "unknown event type",
			}
		}
		if pts < 0 {
			return &contracts.ConfigurationError{
				Field:   "event_weights.points." + name,
				Message: "must be >= 0",
			}
		}
	}
	if cfg.EventWeights.Default < 0 {
		return &contracts.ConfigurationError{Field: "event_weights.default", Message: "must be >= 0"}
	}

	// === Decay ===
	switch cfg.Decay.Mode {
	case "linear":
	case "exponential":
		if cfg.Decay.HalfLifeDays <= 0 {
			return &contracts.ConfigurationError{Field: "decay.half_life_days", Message: "must be > 0 in exponential mode"}
		}
	default:
		return &contracts.ConfigurationError{Field: "decay.mode", Message: "must be linear or exponential"}
	}
	if cfg.Decay.WindowDays <= 0 {
		return &contracts.ConfigurationError{Field: "decay.window_days", Message: "must be > 0"}
	}
	if cfg.Decay.MinFactor < 0 || cfg.Decay.MinFactor >= 1 {
		return &contracts.ConfigurationError{Field: "decay.min_factor", Message: "must be in [0, 1)"}
	}

	// === Cache ===
	if cfg.Cache.TTLDays <= 0 {
		return &contracts.ConfigurationError{Field: "cache.ttl_days", Message: "must be > 0"}
	}

	// === Schedules ===
	if err := validateCron(cfg.Schedules.FullScanCron); err != nil {
		return &contracts.ConfigurationError{Field: "schedules.full_scan_cron", Message: err.Error()}
	}
	if err := validateCron(cfg.Schedules.EventScanCron); err != nil {
		return &contracts.ConfigurationError{Field: "schedules.event_scan_cron", Message: err.Error()}
	}
	if cfg.Schedules.Timezone == "" {
		return &contracts.ConfigurationError{Field: "schedules.timezone", Message: "required"}
	}
	if _, err := time.LoadLocation(cfg.Schedules.Timezone); err != nil {
		return &contracts.ConfigurationError{Field: "schedules.timezone", Message: "unknown timezone"}
	}

	// === Notifications ===
	switch cfg.Notifications.Mode {
	case "stub", "twilio":
	default:
		return &contracts.ConfigurationError{Field: "notifications.mode", Message: "must be stub or twilio"}
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Mode == "twilio" && len(cfg.Notifications.Recipients) == 0 {
		return &contracts.ConfigurationError{Field: "notifications.recipients", Message: "required in twilio mode"}
	}

	// === Output ===
	if cfg.Output.TopN <= 0 {
		return &contracts.ConfigurationError{Field: "output.top_n", Message: "must be > 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal).
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Weights.Events > 0 && allZero(cfg.EventWeights.Points) && cfg.EventWeights.Default == 0 {
		warnings = append(warnings, Warning{
			Code:    "DEAD_EVENT_BLOCK",
			Message: "events weight is non-zero but every event point value is zero",
		})
	}

	if cfg.DataProvider.MaxSymbols > 0 && cfg.DataProvider.MaxSymbols < 10 {
		warnings = append(warnings, Warning{
			Code:    "TINY_UNIVERSE",
			Message: "max_symbols < 10: ranking over a near-empty universe",
		})
	}

	if cfg.Decay.MinFactor > 0 {
		warnings = append(warnings, Warning{
			Code:    "DECAY_FLOOR",
			Message: "decay.min_factor > 0: events never fully age out inside the window",
		})
	}

	return warnings
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// validateCron accepts the standard 5-field cron format.
func validateCron(expr string) error {
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("expected 5 cron fields, got %q", expr)
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %v", expr, err)
	}
	return nil
}

func allZero(m map[string]float64) bool {
	for _, v := range m {
		if v != 0 {
			return false
		}
	}
	return true
}
