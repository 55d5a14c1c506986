package scoring

import (
	"fmt"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// Quality sub-metric scales. Returns above these earn the full partial
// score for that sub-metric.
const (
	fullScoreROE       = 25.0  // ROE % treated as excellent
	fullScoreROCE      = 25.0  // ROCE % treated as excellent
	comfortDebtRatio   = 50.0  // debt/net-worth % considered comfortable
	distressDebtRatio  = 200.0 // debt/net-worth % scoring zero
)

// qualityScore combines ROE, ROCE and the debt ratio into [0, weight].
// Each sub-metric contributes a bounded partial score; a missing
// sub-metric (zero value) simply contributes nothing rather than
// poisoning the block.
func (e *Engine) qualityScore(snap *contracts.Snapshot) (float64, []reason) {
	weight := float64(e.cfg.Weights.Quality)
	if weight == 0 {
		return 0, nil
	}

	var rs []reason

	roeFrac := 0.0
	if snap.ROE > 0 {
		roeFrac = clamp(snap.ROE/fullScoreROE, 0, 1)
		rs = append(rs, reason{
			text:         fmt.Sprintf("ROE: %.1f%%", snap.ROE),
			contribution: 0.4 * roeFrac * weight,
		})
	}

	roceFrac := 0.0
	if snap.ROCE > 0 {
		roceFrac = clamp(snap.ROCE/fullScoreROCE, 0, 1)
		rs = append(rs, reason{
			text:         fmt.Sprintf("ROCE: %.1f%%", snap.ROCE),
			contribution: 0.4 * roceFrac * weight,
		})
	}

	// Debt only scores when net worth is known; DebtRatio returns 0 for
	// unknown net worth and that must not read as "debt free".
	debtFrac := 0.0
	if snap.NetWorthCr > 0 {
		ratio := snap.DebtRatio()
		switch {
		case ratio <= comfortDebtRatio:
			debtFrac = 1.0
		case ratio >= distressDebtRatio:
			debtFrac = 0.0
		default:
			debtFrac = 1.0 - (ratio-comfortDebtRatio)/(distressDebtRatio-comfortDebtRatio)
		}
		rs = append(rs, reason{
			text:         fmt.Sprintf("Debt ratio: %.0f%% of net worth", ratio),
			contribution: 0.2 * debtFrac * weight,
		})
	}

	score := clamp(0.4*roeFrac+0.4*roceFrac+0.2*debtFrac, 0, 1) * weight
	return score, rs
}
