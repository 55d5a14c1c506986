package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// Engine turns one symbol's snapshot, events and the rule set into a
// score breakdown. It is a pure function of its inputs: no I/O, no
// wall-clock reads. Event ages are measured against the run's fixed
// as-of timestamp, so identical inputs always produce identical
// breakdowns and the engine is safe to invoke concurrently.
type Engine struct {
	cfg    *rules.Config
	logger *logger.Logger
}

// NewEngine creates a scoring engine bound to a validated rule set.
func NewEngine(cfg *rules.Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, logger: log}
}

// reason pairs an explanation with the contribution that produced it,
// so the final list can be ordered by contribution magnitude.
type reason struct {
	text         string
	contribution float64
}

// Score produces the breakdown for one symbol. Each positive block is
// bounded by its configured weight; risk is a penalty subtracted from
// the positive sum. The final score is deliberately not clamped after
// the subtraction: a negative score still ranks, just last.
func (e *Engine) Score(snap *contracts.Snapshot, events []contracts.Event, asOf time.Time) contracts.ScoreBreakdown {
	var reasons []reason

	profit, rs := e.profitTrendScore(snap)
	reasons = append(reasons, rs...)

	valuation, rs := e.valuationScore(snap)
	reasons = append(reasons, rs...)

	eventScore, rs := e.eventScore(events, asOf)
	reasons = append(reasons, rs...)

	quality, rs := e.qualityScore(snap)
	reasons = append(reasons, rs...)

	risk, rs := e.riskPenalty(snap)
	reasons = append(reasons, rs...)

	final := profit + valuation + eventScore + quality - risk

	e.logger.WithFields(map[string]interface{}{
		"symbol":       snap.Symbol,
		"profit_trend": profit,
		"valuation":    valuation,
		"events":       eventScore,
		"quality":      quality,
		"risk":         risk,
		"final":        final,
	}).Debug("Scored symbol")

	return contracts.ScoreBreakdown{
		Symbol:      snap.Symbol,
		Name:        snap.Name,
		Exchange:    snap.Exchange,
		Sector:      snap.Sector,
		MarketCapCr: snap.MarketCapCr,
		PE:          snap.PE,
		Price:       snap.Price,
		Components: contracts.ComponentScores{
			ProfitTrend: round2(profit),
			Valuation:   round2(valuation),
			Events:      round2(eventScore),
			Quality:     round2(quality),
			Risk:        round2(risk),
		},
		FinalScore:        round2(final),
		Reasons:           orderReasons(reasons),
		EventCount:        len(events),
		StaleFundamentals: snap.StaleFundamentals,
	}
}

// orderReasons sorts by contribution magnitude descending, symbol-free
// text as the deterministic tie-breaker, and drops zero contributions.
func orderReasons(rs []reason) []string {
	nonZero := make([]reason, 0, len(rs))
	for _, r := range rs {
		if r.contribution != 0 {
			nonZero = append(nonZero, r)
		}
	}
	sort.SliceStable(nonZero, func(i, j int) bool {
		ai, aj := math.Abs(nonZero[i].contribution), math.Abs(nonZero[j].contribution)
		if ai != aj {
			return ai > aj
		}
		return nonZero[i].text < nonZero[j].text
	})

	out := make([]string, len(nonZero))
	for i, r := range nonZero {
		out[i] = r.text
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
