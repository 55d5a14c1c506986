package scoring

import (
	"fmt"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// Risk penalty fractions. Each triggered flag consumes a share of the
// risk weight; the total penalty saturates at the full weight.
const (
	penaltyESM        = 0.50
	penaltyGovernance = 0.35
	penaltyPledge     = 0.25
	penaltyProfitDrop = 0.30

	sharpProfitDropPct = -30.0
)

// riskPenalty accumulates penalty fractions for surveillance flags,
// governance red flags, pledged holdings above the configured limit and
// sharp profit deterioration, then scales onto [0, weight]. The result
// is subtracted from the positive blocks, never added.
func (e *Engine) riskPenalty(snap *contracts.Snapshot) (float64, []reason) {
	weight := float64(e.cfg.Weights.Risk)
	if weight == 0 {
		return 0, nil
	}

	var frac float64
	var rs []reason

	if snap.ESMFlag {
		frac += penaltyESM
		rs = append(rs, reason{
			text:         "Risk: exchange surveillance flag present",
			contribution: -penaltyESM * weight,
		})
	}

	if snap.GovernanceFlag {
		frac += penaltyGovernance
		rs = append(rs, reason{
			text:         "Risk: governance red flag",
			contribution: -penaltyGovernance * weight,
		})
	}

	if maxPledge := e.cfg.Filters.MaxPledgePct; maxPledge > 0 && snap.PledgePct > maxPledge {
		frac += penaltyPledge
		rs = append(rs, reason{
			text:         fmt.Sprintf("Risk: pledge above threshold (%.1f%% > %.1f%%)", snap.PledgePct, maxPledge),
			contribution: -penaltyPledge * weight,
		})
	}

	if snap.ProfitPrevTTMCr > 0 {
		if yoy := snap.ProfitYoYGrowthPct(); yoy < sharpProfitDropPct {
			frac += penaltyProfitDrop
			rs = append(rs, reason{
				text:         fmt.Sprintf("Risk: sharp profit drop (%.1f%%)", yoy),
				contribution: -penaltyProfitDrop * weight,
			})
		}
	}

	return clamp(frac, 0, 1) * weight, rs
}
