package scoring

import (
	"fmt"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// valuationScore rewards cheapness: lower P/E scores higher, bounded by
// the block weight. P/E up to 20 earns the full block; between 20 and
// the configured max it degrades linearly to 45% of the block; above
// the max it falls off steeply toward zero. Non-positive P/E
// (loss-making or missing earnings) scores zero, never negative.
func (e *Engine) valuationScore(snap *contracts.Snapshot) (float64, []reason) {
	weight := float64(e.cfg.Weights.Valuation)
	if weight == 0 {
		return 0, nil
	}

	maxPE := e.cfg.Filters.MaxPE
	if maxPE <= 20 {
		maxPE = 40
	}

	pe := snap.PE
	var frac float64
	switch {
	case pe <= 0:
		frac = 0
	case pe <= 20:
		frac = 1.0
	case pe <= maxPE:
		frac = clamp(1.0-((pe-20.0)/(maxPE-20.0))*0.4, 0.45, 1.0)
	default:
		frac = clamp(0.45-(pe-maxPE)*0.02, 0, 0.45)
	}

	score := frac * weight

	return score, []reason{
		{
			text:         fmt.Sprintf("PE: %.1f (max configured: %.1f)", pe, maxPE),
			contribution: score,
		},
	}
}
