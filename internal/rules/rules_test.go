package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantgrid/oppscan/internal/contracts"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestDefaultWeightsSum(t *testing.T) {
	cfg := Default()
	assert.Equal(t, PositiveWeightTotal, cfg.Weights.PositiveSum())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing strategy id",
			mutate: func(c *Config) { c.Meta.StrategyID = "" },
			field:  "meta.strategy_id",
		},
		{
			name:   "unknown provider type",
			mutate: func(c *Config) { c.DataProvider.Type = "bloomberg" },
			field:  "data_provider.type",
		},
		{
			name:   "zero request timeout",
			mutate: func(c *Config) { c.DataProvider.RequestTimeoutSec = 0 },
			field:  "data_provider.request_timeout_sec",
		},
		{
			name:   "zero fetch concurrency",
			mutate: func(c *Config) { c.DataProvider.FetchConcurrency = 0 },
			field:  "data_provider.fetch_concurrency",
		},
		{
			name:   "max market cap below min",
			mutate: func(c *Config) { c.Universe.MinMarketCapCr = 1000; c.Universe.MaxMarketCapCr = 500 },
			field:  "universe.max_market_cap_cr",
		},
		{
			name:   "positive weights undershoot",
			mutate: func(c *Config) { c.Weights.ProfitTrend = 34 },
			field:  "weights",
		},
		{
			name:   "positive weights overshoot",
			mutate: func(c *Config) { c.Weights.Events = 26 },
			field:  "weights",
		},
		{
			name:   "negative block weight",
			mutate: func(c *Config) { c.Weights.Quality = -10; c.Weights.Valuation = 40 },
			field:  "weights",
		},
		{
			name:   "negative risk weight",
			mutate: func(c *Config) { c.Weights.Risk = -1 },
			field:  "weights.risk",
		},
		{
			name:   "unknown event type",
			mutate: func(c *Config) { c.EventWeights.Points["ipo_listing"] = 5 },
			field:  "event_weights.points.ipo_listing",
		},
		{
			name:   "negative event points",
			mutate: func(c *Config) { c.EventWeights.Points["order_win"] = -2 },
			field:  "event_weights.points.order_win",
		},
		{
			name:   "unknown decay mode",
			mutate: func(c *Config) { c.Decay.Mode = "stepwise" },
			field:  "decay.mode",
		},
		{
			name:   "exponential without half life",
			mutate: func(c *Config) { c.Decay.Mode = "exponential"; c.Decay.HalfLifeDays = 0 },
			field:  "decay.half_life_days",
		},
		{
			name:   "zero decay window",
			mutate: func(c *Config) { c.Decay.WindowDays = 0 },
			field:  "decay.window_days",
		},
		{
			name:   "min factor at one",
			mutate: func(c *Config) { c.Decay.MinFactor = 1 },
			field:  "decay.min_factor",
		},
		{
			name:   "zero cache ttl",
			mutate: func(c *Config) { c.Cache.TTLDays = 0 },
			field:  "cache.ttl_days",
		},
		{
			name:   "six field cron",
			mutate: func(c *Config) { c.Schedules.FullScanCron = "0 30 16 * * 1-5" },
			field:  "schedules.full_scan_cron",
		},
		{
			name:   "garbage cron",
			mutate: func(c *Config) { c.Schedules.EventScanCron = "every 30 minutes or so" },
			field:  "schedules.event_scan_cron",
		},
		{
			name:   "unknown timezone",
			mutate: func(c *Config) { c.Schedules.Timezone = "Mars/Olympus_Mons" },
			field:  "schedules.timezone",
		},
		{
			name:   "unknown notification mode",
			mutate: func(c *Config) { c.Notifications.Mode = "carrier_pigeon" },
			field:  "notifications.mode",
		},
		{
			name: "twilio without recipients",
			mutate: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.Mode = "twilio"
				c.Notifications.Recipients = nil
			},
			field: "notifications.recipients",
		},
		{
			name:   "zero top n",
			mutate: func(c *Config) { c.Output.TopN = 0 },
			field:  "output.top_n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			require.True(t, contracts.IsConfigurationError(err))

			var ce *contracts.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestWeightsNeverNormalized(t *testing.T) {
	cfg := Default()
	cfg.Weights.ProfitTrend = 36 // sum 91

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sum to 90, got 91")
	// The config itself stays untouched.
	assert.Equal(t, 36, cfg.Weights.ProfitTrend)
}

func TestWarnDeadEventBlock(t *testing.T) {
	cfg := Default()
	for k := range cfg.EventWeights.Points {
		cfg.EventWeights.Points[k] = 0
	}
	cfg.EventWeights.Default = 0

	warnings := Warn(cfg)
	require.Len(t, warnings, 1)
	assert.Equal(t, "DEAD_EVENT_BLOCK", warnings[0].Code)
}

func TestWarnTinyUniverse(t *testing.T) {
	cfg := Default()
	cfg.DataProvider.MaxSymbols = 5

	codes := warnCodes(Warn(cfg))
	assert.Contains(t, codes, "TINY_UNIVERSE")
}

func TestWarnDecayFloor(t *testing.T) {
	cfg := Default()
	cfg.Decay.MinFactor = 0.1

	codes := warnCodes(Warn(cfg))
	assert.Contains(t, codes, "DECAY_FLOOR")
}

func TestWarnCleanDefault(t *testing.T) {
	assert.Empty(t, Warn(Default()))
}

func warnCodes(ws []Warning) []string {
	codes := make([]string, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

func TestPointsFor(t *testing.T) {
	ew := EventWeights{
		Points:  map[string]float64{"order_win": 10},
		Default: 2,
	}

	assert.Equal(t, 10.0, ew.PointsFor("order_win"))
	assert.Equal(t, 2.0, ew.PointsFor("acquisition"))
}
