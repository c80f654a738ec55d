package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// consolidationBatch returns 20 trades:
//   A: bull 5W/1L, bear 1W/3L   → 10 trades, 60% wins, avg +5
//   B: bear 8L                  → 8 trades, avg -10
//   C: 2 trades                 → below the group minimum
func consolidationBatch() []TradeInput {
	var in []TradeInput
	for i := 0; i < 5; i++ {
		in = append(in, trade("A", "bull", 15, 0.5, 20))
	}
	in = append(in, trade("A", "bull", -10, 0.5, 20))
	in = append(in, trade("A", "bear", 15, 0.5, 20))
	for i := 0; i < 3; i++ {
		in = append(in, trade("A", "bear", -10, 0.5, 20))
	}
	for i := 0; i < 8; i++ {
		in = append(in, trade("B", "bear", -10, 0.5, 40))
	}
	in = append(in, trade("C", "bull", 30, 0.5, 5), trade("C", "chop", 30, 0.5, 5))
	return in
}

func TestConsolidation_AtTwentyTrades(t *testing.T) {
	store := &fakeStore{}
	m := New(WithStore(store))

	batch := consolidationBatch()
	for i, in := range batch {
		record(t, m, in)
		if i < len(batch)-1 {
			assert.Empty(t, m.Patterns(), "no consolidation before 20 trades")
		}
	}

	patterns := m.Patterns()
	require.Len(t, patterns, 2)

	a, b := patterns[0], patterns[1]
	assert.Equal(t, "A", a.SignalType)
	assert.Equal(t, 10, a.TradeCount)
	assert.InDelta(t, 0.6, a.WinRate, 1e-9)
	assert.InDelta(t, 5, a.AvgReturn, 1e-6)
	assert.InDelta(t, 20, a.AvgHoldMinutes, 1e-6)
	assert.Equal(t, types.PatternNeutral, a.PatternType)
	assert.Equal(t, []string{"bull"}, a.FavorableRegimes)
	assert.Equal(t, []string{"bear"}, a.UnfavorableRegimes)
	assert.InDelta(t, 0.6, a.Confidence, 1e-9)

	assert.Equal(t, "B", b.SignalType)
	assert.Equal(t, types.PatternReversalFailed, b.PatternType)
	assert.Empty(t, b.FavorableRegimes)
	assert.Equal(t, []string{"bear"}, b.UnfavorableRegimes)
	assert.InDelta(t, 0.54, b.Confidence, 1e-9)

	assert.Len(t, store.patterns, 2)
	assert.Len(t, m.Recent(), HotSetSize)

	last := store.trades[len(store.trades)-1]
	assert.Equal(t, 20, last.state.TotalTrades)
	assert.Equal(t, 0, last.state.SinceConsolidation)

	record(t, m, trade("A", "bull", 15, 0.5, 20))
	assert.Len(t, m.Recent(), HotSetSize+1)
	assert.Len(t, m.Patterns(), 2)
}

func TestConsolidation_HotSetTruncated(t *testing.T) {
	m := New()
	for i := 0; i < 40; i++ {
		record(t, m, trade("A", "bull", 15, 0.5, 20))
	}
	assert.Len(t, m.Recent(), HotSetSize)
	assert.Len(t, m.Patterns(), 2)
	assert.Equal(t, 40, m.Stats().TotalTrades)
}

func TestPatternConfidence_Capped(t *testing.T) {
	assert.InDelta(t, 0.39, PatternConfidence(3), 1e-9)
	assert.InDelta(t, 0.9, PatternConfidence(20), 1e-9)
	assert.InDelta(t, 0.9, PatternConfidence(100), 1e-9)
	assert.True(t, PatternConfidence(10) < PatternConfidence(11))
}

func TestPatternType(t *testing.T) {
	assert.Equal(t, types.PatternMomentum, PatternType(10.5))
	assert.Equal(t, types.PatternNeutral, PatternType(10))
	assert.Equal(t, types.PatternNeutral, PatternType(-5))
	assert.Equal(t, types.PatternReversalFailed, PatternType(-5.5))
}

func TestMedian(t *testing.T) {
	assert.Zero(t, median(nil))
	assert.InDelta(t, 2, median([]float64{3, 1, 2}), 1e-9)
	assert.InDelta(t, 2.5, median([]float64{4, 1, 3, 2}), 1e-9)
}

func TestPersistence_FailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	m := New(WithStore(store))

	store.setFail(true)
	record(t, m, trade("A", "bull", 15, 0.5, 20))
	record(t, m, trade("A", "bull", -15, 0.5, 20))
	assert.Equal(t, 2, m.Stats().PendingWrites)
	assert.Len(t, m.Recent(), 2, "records survive failed writes")

	store.setFail(false)
	assert.Equal(t, 0, m.Flush(ctx))
	require.Len(t, store.trades, 2)
	assert.Equal(t, 1, store.trades[0].state.TotalTrades)
	assert.Equal(t, 2, store.trades[1].state.TotalTrades)
	assert.Equal(t, types.OutcomeLoss, store.trades[1].outcome.Outcome)
}

func TestLoad_FillsDefaults(t *testing.T) {
	store := &fakeStore{
		loadOutcomes: []types.TradeOutcome{{ID: "trd_1", SignalType: "A", PnLPercent: 5}},
		loadState:    &State{TotalTrades: 7},
	}
	m := New(WithStore(store))
	require.NoError(t, m.Load(context.Background()))

	assert.Equal(t, 7, m.Stats().TotalTrades)
	assert.Len(t, m.Recent(), 1)

	// nil maps from an older snapshot must not panic
	record(t, m, trade("A", "bull", 15, 0.5, 20))
	assert.Equal(t, 8, m.Stats().TotalTrades)
}
