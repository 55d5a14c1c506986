package scoring

import (
	"fmt"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// profitTrendScore maps trailing profit growth onto [0, weight].
// 70% of the block rewards year-over-year TTM growth (clipped to
// [-50%, +100%] then shifted onto a 0..1 scale), 30% rewards
// quarter-over-quarter consistency.
func (e *Engine) profitTrendScore(snap *contracts.Snapshot) (float64, []reason) {
	weight := float64(e.cfg.Weights.ProfitTrend)
	if weight == 0 {
		return 0, nil
	}

	yoy := snap.ProfitYoYGrowthPct()
	growthFrac := (clamp(yoy, -50, 100) + 50) / 150

	q := snap.ProfitQuarters
	increasingSteps := 0
	for i := 1; i < len(q); i++ {
		if q[i] >= q[i-1] {
			increasingSteps++
		}
	}
	consistencyFrac := float64(increasingSteps) / 3.0

	score := clamp(0.7*growthFrac+0.3*consistencyFrac, 0, 1) * weight

	return score, []reason{
		{
			text:         fmt.Sprintf("Profit YoY growth: %.1f%%", yoy),
			contribution: 0.7 * growthFrac * weight,
		},
		{
			text:         fmt.Sprintf("Quarterly trend consistency: %d/3", increasingSteps),
			contribution: 0.3 * consistencyFrac * weight,
		},
	}
}
