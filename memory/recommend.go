package memory

import (
	"fmt"
	"math"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const (
	// MinSamples is the accumulator sample count below which a statistic is
	// ignored by Recommend.
	MinSamples = 5

	strongWinRate = 0.6
	weakWinRate   = 0.4

	baseConfidence  = 0.5
	regimeBoost     = 0.1
	regimePenalty   = 0.2
	confidenceCap   = 0.95
	confidenceFloor = 0.1
)

// Recommend answers whether the accumulated history favors an entry with the
// given signal, regime and sentiment. Each accumulator contributes only once
// it holds MinSamples trades.
func (m *TradeMemory) Recommend(signalType, regime string, sentimentScore float64) types.Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := types.Recommendation{
		Action:     types.ActionNeutral,
		Confidence: baseConfidence,
	}

	if s := m.state.SignalStats[signalType]; s != nil && s.Total >= MinSamples {
		rec.ExpectedReturn = s.AvgPnL
		switch {
		case s.WinRate > strongWinRate:
			rec.Action = types.ActionBuy
			rec.Confidence = s.WinRate
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("signal %s won %.0f%% of %d trades", signalType, s.WinRate*100, s.Total))
		case s.WinRate < weakWinRate:
			rec.Action = types.ActionAvoid
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("signal %s won only %.0f%% of %d trades", signalType, s.WinRate*100, s.Total))
		}
	}

	if s := m.state.RegimeStats[regime]; s != nil && s.Total >= MinSamples {
		switch {
		case s.WinRate > strongWinRate:
			rec.Confidence = math.Min(confidenceCap, rec.Confidence+regimeBoost)
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("%s regime is favorable (%.0f%% win rate)", regime, s.WinRate*100))
		case s.WinRate < weakWinRate:
			rec.Confidence = math.Max(confidenceFloor, rec.Confidence-regimePenalty)
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s regime is unfavorable (%.0f%% win rate)", regime, s.WinRate*100))
		}
	}

	bucket := SentimentBucket(sentimentScore)
	if s := m.state.SentimentStats[bucket]; s != nil && s.Total >= MinSamples {
		switch {
		case s.WinRate > strongWinRate:
			rec.Reasons = append(rec.Reasons, fmt.Sprintf("%s sentiment historically wins (%.0f%%)", bucket, s.WinRate*100))
		case s.WinRate < weakWinRate:
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("%s sentiment historically loses (%.0f%% win rate)", bucket, s.WinRate*100))
		}
	}

	if len(m.state.WinDurations) >= MinOptimalExitSamples {
		rec.SuggestedHoldMinutes = m.state.OptimalExitMinutes
	}
	return rec
}
