package pipeline

import (
	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/rules"
)

// filterCheck is one named exclusion predicate. pass reports whether
// the snapshot survives; the name keys the FilteredOut counters.
type filterCheck struct {
	name string
	pass func(*contracts.Snapshot) bool
}

// buildFilters compiles the active predicates from the rule set. A
// symbol must pass every predicate; a missing field a predicate needs
// excludes the symbol rather than raising.
func buildFilters(cfg *rules.Config) []filterCheck {
	var checks []filterCheck

	if cfg.Universe.MinMarketCapCr > 0 {
		checks = append(checks, filterCheck{"min_market_cap", func(s *contracts.Snapshot) bool {
			return s.MarketCapCr >= cfg.Universe.MinMarketCapCr
		}})
	}
	if cfg.Universe.MaxMarketCapCr > 0 {
		checks = append(checks, filterCheck{"max_market_cap", func(s *contracts.Snapshot) bool {
			return s.MarketCapCr > 0 && s.MarketCapCr <= cfg.Universe.MaxMarketCapCr
		}})
	}
	if len(cfg.Universe.Exchanges) > 0 {
		allowed := toSet(cfg.Universe.Exchanges)
		checks = append(checks, filterCheck{"exchange", func(s *contracts.Snapshot) bool {
			return allowed[s.Exchange]
		}})
	}
	if len(cfg.Universe.SectorsAllowlist) > 0 {
		allowed := toSet(cfg.Universe.SectorsAllowlist)
		checks = append(checks, filterCheck{"sector", func(s *contracts.Snapshot) bool {
			return allowed[s.Sector]
		}})
	}

	if cfg.Filters.ExcludeESM {
		checks = append(checks, filterCheck{"esm_flag", func(s *contracts.Snapshot) bool {
			return !s.ESMFlag
		}})
	}
	if cfg.Filters.ExcludeLossMaking {
		checks = append(checks, filterCheck{"loss_making", func(s *contracts.Snapshot) bool {
			return s.ProfitTTMCr > 0
		}})
	}
	if cfg.Filters.MinProfitTTMCr > 0 {
		checks = append(checks, filterCheck{"min_profit_ttm", func(s *contracts.Snapshot) bool {
			return s.ProfitTTMCr >= cfg.Filters.MinProfitTTMCr
		}})
	}
	if cfg.Filters.MinProfitYoYGrowthPct != 0 {
		checks = append(checks, filterCheck{"min_profit_growth", func(s *contracts.Snapshot) bool {
			return s.ProfitYoYGrowthPct() >= cfg.Filters.MinProfitYoYGrowthPct
		}})
	}
	if cfg.Filters.MaxPE > 0 {
		checks = append(checks, filterCheck{"max_pe", func(s *contracts.Snapshot) bool {
			return s.PE > 0 && s.PE <= cfg.Filters.MaxPE
		}})
	}
	if cfg.Filters.MaxPledgePct > 0 {
		checks = append(checks, filterCheck{"max_pledge", func(s *contracts.Snapshot) bool {
			return s.PledgePct <= cfg.Filters.MaxPledgePct
		}})
	}

	return checks
}

// applyFilters returns the first failing filter name, or ("", true)
// when the snapshot passes everything.
func applyFilters(checks []filterCheck, snap *contracts.Snapshot) (string, bool) {
	for _, check := range checks {
		if !check.pass(snap) {
			return check.name, false
		}
	}
	return "", true
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
