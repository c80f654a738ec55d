package memory

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/id"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const (
	// MinGroupSize is the smallest signal group that yields a pattern.
	MinGroupSize = 3
	// MinRegimeObservations gates a regime into favorable/unfavorable.
	MinRegimeObservations = 2

	favorableWinRate   = 0.5
	unfavorableWinRate = 0.4
	momentumReturn     = 10.0
	reversalReturn     = -5.0
	maxConfidence      = 0.9
)

// PatternConfidence grows with sample size and is capped at 0.9.
func PatternConfidence(n int) float64 {
	return math.Min(maxConfidence, 0.3+float64(n)*0.03)
}

// PatternType classifies an average return.
func PatternType(avgReturn float64) string {
	switch {
	case avgReturn > momentumReturn:
		return types.PatternMomentum
	case avgReturn < reversalReturn:
		return types.PatternReversalFailed
	default:
		return types.PatternNeutral
	}
}

// consolidate folds the unconsolidated batch into Tier 2 and shrinks the hot
// set. m.mu must be held.
func (m *TradeMemory) consolidate() {
	n := m.state.SinceConsolidation
	if n > len(m.tier1) {
		n = len(m.tier1)
	}
	batch := m.tier1[len(m.tier1)-n:]

	patterns := Consolidate(batch, m.now())
	m.patterns = append(m.patterns, patterns...)
	if m.store != nil && len(patterns) > 0 {
		m.pendingPatterns = append(m.pendingPatterns, patterns...)
	}

	if len(m.tier1) > HotSetSize {
		m.tier1 = append([]types.TradeOutcome(nil), m.tier1[len(m.tier1)-HotSetSize:]...)
	}
	m.state.SinceConsolidation = 0
	m.metrics.IncConsolidation()

	log.Info().
		Int("batch", len(batch)).
		Int("patterns", len(patterns)).
		Int("total_patterns", len(m.patterns)).
		Msg("🧠 Tier 1 consolidated")
}

type regimeCount struct {
	total int
	wins  int
}

// Consolidate groups a batch of outcomes by signal type and emits one
// PatternMemory per group with at least MinGroupSize trades. Output is
// sorted by signal type.
func Consolidate(batch []types.TradeOutcome, at time.Time) []types.PatternMemory {
	groups := make(map[string][]types.TradeOutcome)
	for _, o := range batch {
		groups[o.SignalType] = append(groups[o.SignalType], o)
	}

	signals := make([]string, 0, len(groups))
	for s := range groups {
		signals = append(signals, s)
	}
	sort.Strings(signals)

	var out []types.PatternMemory
	for _, signal := range signals {
		trades := groups[signal]
		if len(trades) < MinGroupSize {
			continue
		}

		var wins int
		var sumReturn, sumHold float64
		regimes := make(map[string]*regimeCount)
		for _, t := range trades {
			win := t.Outcome == types.OutcomeWin
			if win {
				wins++
			}
			sumReturn += t.PnLPercent
			sumHold += t.HoldMinutes

			rc, ok := regimes[t.MarketRegime]
			if !ok {
				rc = &regimeCount{}
				regimes[t.MarketRegime] = rc
			}
			rc.total++
			if win {
				rc.wins++
			}
		}

		n := float64(len(trades))
		avgReturn := sumReturn / n
		favorable, unfavorable := splitRegimes(regimes)

		out = append(out, types.PatternMemory{
			PatternID:          id.WithPrefix("pat"),
			SignalType:         signal,
			PatternType:        PatternType(avgReturn),
			WinRate:            float64(wins) / n,
			AvgReturn:          avgReturn,
			AvgHoldMinutes:     sumHold / n,
			FavorableRegimes:   favorable,
			UnfavorableRegimes: unfavorable,
			TradeCount:         len(trades),
			Confidence:         PatternConfidence(len(trades)),
			CreatedAt:          at,
		})
	}
	return out
}

func splitRegimes(regimes map[string]*regimeCount) (favorable, unfavorable []string) {
	for regime, rc := range regimes {
		if regime == "" || rc.total < MinRegimeObservations {
			continue
		}
		rate := float64(rc.wins) / float64(rc.total)
		switch {
		case rate > favorableWinRate:
			favorable = append(favorable, regime)
		case rate < unfavorableWinRate:
			unfavorable = append(unfavorable, regime)
		}
	}
	sort.Strings(favorable)
	sort.Strings(unfavorable)
	return favorable, unfavorable
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
