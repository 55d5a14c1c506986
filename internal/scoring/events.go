package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
)

// eventScore sums decayed base points over the symbol's recent events
// and saturates at the block weight. Base points come from the
// event-point table; unknown types use the configured default. Ages are
// measured against the run's as-of timestamp, keeping the engine pure.
func (e *Engine) eventScore(events []contracts.Event, asOf time.Time) (float64, []reason) {
	weight := float64(e.cfg.Weights.Events)
	if weight == 0 {
		return 0, nil
	}
	if len(events) == 0 {
		return 0, []reason{}
	}

	var raw float64
	var highlights []string
	for i := range events {
		ev := &events[i]
		base := e.cfg.EventWeights.PointsFor(string(ev.Type))
		if base <= 0 {
			continue
		}

		factor := DecayFactor(ev.AgeDays(asOf), e.cfg.Decay)
		if factor == 0 {
			continue
		}

		raw += base * factor
		if len(highlights) < 3 {
			highlights = append(highlights, fmt.Sprintf("%s (%s)", ev.Type, ev.Date.Format("2006-01-02")))
		}
	}

	score := clamp(raw, 0, weight)
	if score == 0 {
		return 0, []reason{}
	}

	return score, []reason{
		{
			text:         "Recent events: " + strings.Join(highlights, ", "),
			contribution: score,
		},
	}
}
