package scoring

import (
	"math"

	"github.com/quantgrid/oppscan/internal/rules"
)

// DecayFactor returns the multiplier applied to an event's base points
// at the given age. It is monotonically non-increasing with
// DecayFactor(0) = 1 and 0 at or beyond the decay window. A configured
// min_factor floors the curve inside the window only; past the window
// the factor is always 0 so stale events cannot linger forever.
func DecayFactor(ageDays float64, cfg rules.Decay) float64 {
	if ageDays <= 0 {
		return 1.0
	}
	window := float64(cfg.WindowDays)
	if ageDays >= window {
		return 0.0
	}

	var factor float64
	switch cfg.Mode {
	case "exponential":
		factor = math.Exp2(-ageDays / cfg.HalfLifeDays)
	default: // linear
		factor = 1.0 - ageDays/window
	}

	if factor < cfg.MinFactor {
		factor = cfg.MinFactor
	}
	return factor
}
