// Package memory records closed-trade outcomes and turns them into pattern
// statistics that bias future entries.
//
// Tier 1 is the raw outcome log (hot set in memory, full history in the
// store). Tier 2 is one PatternMemory per signal type per consolidation batch.
// Three running accumulators (signal, regime, sentiment bucket) answer
// Recommend queries without scanning history.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/id"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const (
	// ConsolidateEvery is the number of new Tier 1 records that triggers a
	// consolidation into Tier 2.
	ConsolidateEvery = 20
	// HotSetSize is how many Tier 1 records stay in memory after consolidation.
	HotSetSize = 20
	// DurationWindow bounds each hold-duration window.
	DurationWindow = 50
	// MinOptimalExitSamples is the number of winning durations needed before
	// OptimalExitMinutes is reported.
	MinOptimalExitSamples = 5

	winThreshold  = 1.0
	lossThreshold = -1.0
)

// ErrInvalidTrade is returned for inputs that cannot produce a PnL.
var ErrInvalidTrade = errors.New("invalid trade input")

// TradeInput is what the exit path knows about a closed position.
type TradeInput struct {
	PositionID     string
	TokenSymbol    string
	TokenAddress   string
	EntryPrice     float64
	ExitPrice      float64
	AmountBase     float64
	OpenedAt       time.Time
	ClosedAt       time.Time
	MarketRegime   string
	SentimentScore float64
	SignalType     string
	ExitReason     string
}

// Stat is one running accumulator bucket.
type Stat struct {
	Total   int     `json:"total"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"win_rate"`
	AvgPnL  float64 `json:"avg_pnl"`
}

func (s *Stat) add(pnl float64, win bool) {
	s.Total++
	if win {
		s.Wins++
	}
	n := float64(s.Total)
	s.WinRate = float64(s.Wins) / n
	s.AvgPnL = ((n-1)*s.AvgPnL + pnl) / n
}

// State is the accumulator snapshot persisted alongside every outcome.
type State struct {
	SignalStats        map[string]*Stat `json:"signal_stats"`
	RegimeStats        map[string]*Stat `json:"regime_stats"`
	SentimentStats     map[string]*Stat `json:"sentiment_stats"`
	WinDurations       []float64        `json:"win_durations"`
	LossDurations      []float64        `json:"loss_durations"`
	OptimalExitMinutes float64          `json:"optimal_exit_minutes"`
	TotalTrades        int              `json:"total_trades"`
	TotalWins          int              `json:"total_wins"`
	SinceConsolidation int              `json:"since_consolidation"`
}

// NewState returns an empty snapshot.
func NewState() *State {
	s := &State{}
	s.fillDefaults()
	return s
}

// fillDefaults repairs a snapshot loaded from an older schema.
func (s *State) fillDefaults() {
	if s.SignalStats == nil {
		s.SignalStats = make(map[string]*Stat)
	}
	if s.RegimeStats == nil {
		s.RegimeStats = make(map[string]*Stat)
	}
	if s.SentimentStats == nil {
		s.SentimentStats = make(map[string]*Stat)
	}
	if s.SinceConsolidation < 0 {
		s.SinceConsolidation = 0
	}
}

// Clone deep-copies the snapshot.
func (s *State) Clone() *State {
	c := *s
	c.SignalStats = cloneStats(s.SignalStats)
	c.RegimeStats = cloneStats(s.RegimeStats)
	c.SentimentStats = cloneStats(s.SentimentStats)
	c.WinDurations = append([]float64(nil), s.WinDurations...)
	c.LossDurations = append([]float64(nil), s.LossDurations...)
	return &c
}

func cloneStats(in map[string]*Stat) map[string]*Stat {
	out := make(map[string]*Stat, len(in))
	for k, v := range in {
		if v == nil {
			continue
		}
		s := *v
		out[k] = &s
	}
	return out
}

// Store persists both tiers. SaveTrade must write the outcome and the state
// snapshot in one transaction.
type Store interface {
	SaveTrade(ctx context.Context, outcome *types.TradeOutcome, state *State) error
	SavePatterns(ctx context.Context, patterns []types.PatternMemory) error
	LoadMemory(ctx context.Context, hotLimit int) ([]types.TradeOutcome, []types.PatternMemory, *State, error)
}

// TradeMemory owns Tier 1, Tier 2 and the accumulators. One mutex guards
// them all so a RecordTrade is observed whole or not at all.
type TradeMemory struct {
	mu       sync.Mutex
	tier1    []types.TradeOutcome
	patterns []types.PatternMemory
	state    *State

	store   Store
	metrics *metrics.Metrics

	// writes that failed and are retried by Flush
	pendingTrades   []pendingTrade
	pendingPatterns []types.PatternMemory

	now func() time.Time
}

// Option configures a TradeMemory
type Option func(*TradeMemory)

// WithStore persists outcomes, patterns and accumulators.
func WithStore(s Store) Option {
	return func(m *TradeMemory) { m.store = s }
}

// WithMetrics records trade counters.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *TradeMemory) { m.metrics = mt }
}

// New creates an empty trade memory.
func New(opts ...Option) *TradeMemory {
	m := &TradeMemory{
		state: NewState(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load restores both tiers and the accumulators from the store.
func (m *TradeMemory) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	outcomes, patterns, state, err := m.store.LoadMemory(ctx, HotSetSize)
	if err != nil {
		return fmt.Errorf("load trade memory: %w", err)
	}
	if state == nil {
		state = NewState()
	}
	state.fillDefaults()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tier1 = outcomes
	m.patterns = patterns
	m.state = state

	log.Info().
		Int("hot_trades", len(outcomes)).
		Int("patterns", len(patterns)).
		Int("total_trades", state.TotalTrades).
		Msg("🧠 Trade memory loaded")
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// TIER 1
// ═══════════════════════════════════════════════════════════════════════════════

// Classify maps a PnL percent onto WIN / LOSS / BREAKEVEN.
func Classify(pnlPercent float64) string {
	switch {
	case pnlPercent > winThreshold:
		return types.OutcomeWin
	case pnlPercent < lossThreshold:
		return types.OutcomeLoss
	default:
		return types.OutcomeBreakeven
	}
}

// SentimentBucket maps a score in [0,1] to its accumulator key.
func SentimentBucket(score float64) string {
	switch {
	case score >= 0.7:
		return "very_high"
	case score >= 0.5:
		return "high"
	case score >= 0.3:
		return "medium"
	default:
		return "low"
	}
}

// RecordTrade appends one closed trade and updates every accumulator.
// Persistence failures are logged and retried by Flush; the in-memory
// record is kept either way.
func (m *TradeMemory) RecordTrade(ctx context.Context, in TradeInput) (*types.TradeOutcome, error) {
	if in.EntryPrice <= 0 {
		return nil, fmt.Errorf("%w: entry price must be positive", ErrInvalidTrade)
	}
	if in.ExitPrice < 0 {
		return nil, fmt.Errorf("%w: exit price is negative", ErrInvalidTrade)
	}
	if in.ClosedAt.IsZero() {
		in.ClosedAt = m.now()
	}

	pnlPercent := (in.ExitPrice - in.EntryPrice) / in.EntryPrice * 100
	hold := 0.0
	if !in.OpenedAt.IsZero() && in.ClosedAt.After(in.OpenedAt) {
		hold = in.ClosedAt.Sub(in.OpenedAt).Minutes()
	}

	outcome := &types.TradeOutcome{
		ID:             id.WithPrefix("trd"),
		PositionID:     in.PositionID,
		TokenSymbol:    in.TokenSymbol,
		TokenAddress:   in.TokenAddress,
		EntryPrice:     in.EntryPrice,
		ExitPrice:      in.ExitPrice,
		AmountBase:     in.AmountBase,
		PnLPercent:     pnlPercent,
		PnLSol:         in.AmountBase * pnlPercent / 100,
		HoldMinutes:    hold,
		MarketRegime:   in.MarketRegime,
		SentimentScore: in.SentimentScore,
		SignalType:     in.SignalType,
		Outcome:        Classify(pnlPercent),
		ExitReason:     in.ExitReason,
		ClosedAt:       in.ClosedAt,
	}
	outcome.Lessons = lessons(outcome)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.apply(outcome)
	m.tier1 = append(m.tier1, *outcome)
	if m.state.SinceConsolidation >= ConsolidateEvery {
		m.consolidate()
	}
	m.persistTrade(ctx, outcome)

	m.metrics.IncTrade(outcome.Outcome)
	log.Info().
		Str("token", outcome.TokenSymbol).
		Str("signal", outcome.SignalType).
		Str("outcome", outcome.Outcome).
		Float64("pnl_pct", outcome.PnLPercent).
		Float64("hold_min", outcome.HoldMinutes).
		Msg("🧠 Trade recorded")

	out := *outcome
	return &out, nil
}

// apply updates the accumulators; m.mu must be held.
func (m *TradeMemory) apply(o *types.TradeOutcome) {
	win := o.Outcome == types.OutcomeWin
	st := m.state

	bump := func(stats map[string]*Stat, key string) {
		if key == "" {
			key = "unknown"
		}
		s, ok := stats[key]
		if !ok {
			s = &Stat{}
			stats[key] = s
		}
		s.add(o.PnLPercent, win)
	}
	bump(st.SignalStats, o.SignalType)
	bump(st.RegimeStats, o.MarketRegime)
	bump(st.SentimentStats, SentimentBucket(o.SentimentScore))

	st.TotalTrades++
	st.SinceConsolidation++
	switch o.Outcome {
	case types.OutcomeWin:
		st.TotalWins++
		st.WinDurations = pushWindow(st.WinDurations, o.HoldMinutes)
	case types.OutcomeLoss:
		st.LossDurations = pushWindow(st.LossDurations, o.HoldMinutes)
	}
	if len(st.WinDurations) >= MinOptimalExitSamples {
		st.OptimalExitMinutes = median(st.WinDurations)
	}
}

func pushWindow(w []float64, v float64) []float64 {
	w = append(w, v)
	if len(w) > DurationWindow {
		w = append([]float64(nil), w[len(w)-DurationWindow:]...)
	}
	return w
}

func lessons(o *types.TradeOutcome) []string {
	var out []string
	switch o.Outcome {
	case types.OutcomeWin:
		if o.SentimentScore > 0.6 {
			out = append(out, "high sentiment correlated with win")
		}
		if o.ExitReason == string(types.AlertTrailingStop) {
			out = append(out, "trailing stop locked in profit")
		}
		if o.HoldMinutes > 0 && o.HoldMinutes < 30 && o.PnLPercent > 20 {
			out = append(out, "fast momentum move, quick exit paid off")
		}
	case types.OutcomeLoss:
		if o.SentimentScore > 0.6 {
			out = append(out, "high sentiment did not prevent loss")
		}
		if o.PnLPercent < -20 {
			out = append(out, "large loss, stop loss may be too wide")
		}
		if o.HoldMinutes > 24*60 {
			out = append(out, "held a losing position over a day")
		}
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE
// ═══════════════════════════════════════════════════════════════════════════════

// pendingTrade pairs an outcome with the snapshot taken right after it, so a
// retried write never stores accumulators ahead of the outcomes they count.
type pendingTrade struct {
	outcome *types.TradeOutcome
	state   *State
}

// persistTrade writes the outcome and the current snapshot; m.mu must be held.
func (m *TradeMemory) persistTrade(ctx context.Context, o *types.TradeOutcome) {
	if m.store == nil {
		return
	}
	m.pendingTrades = append(m.pendingTrades, pendingTrade{outcome: o, state: m.state.Clone()})
	m.flushLocked(ctx)
}

// Flush retries failed writes. It returns the number still pending.
func (m *TradeMemory) Flush(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushLocked(ctx)
}

func (m *TradeMemory) flushLocked(ctx context.Context) int {
	if m.store == nil {
		return 0
	}
	for len(m.pendingTrades) > 0 {
		p := m.pendingTrades[0]
		if err := m.store.SaveTrade(ctx, p.outcome, p.state); err != nil {
			log.Warn().Err(err).Str("trade", p.outcome.ID).Int("pending", len(m.pendingTrades)).Msg("⚠️ Trade write failed, will retry")
			break
		}
		m.pendingTrades = m.pendingTrades[1:]
	}
	if len(m.pendingPatterns) > 0 {
		if err := m.store.SavePatterns(ctx, m.pendingPatterns); err != nil {
			log.Warn().Err(err).Int("pending", len(m.pendingPatterns)).Msg("⚠️ Pattern flush failed")
		} else {
			m.pendingPatterns = nil
		}
	}
	return len(m.pendingTrades) + len(m.pendingPatterns)
}

// ═══════════════════════════════════════════════════════════════════════════════
// READ ACCESS
// ═══════════════════════════════════════════════════════════════════════════════

// Recent returns a copy of the Tier 1 hot set, oldest first.
func (m *TradeMemory) Recent() []types.TradeOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.TradeOutcome, len(m.tier1))
	copy(out, m.tier1)
	return out
}

// Latest returns the most recent Tier 1 record.
func (m *TradeMemory) Latest() (types.TradeOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tier1) == 0 {
		return types.TradeOutcome{}, false
	}
	return m.tier1[len(m.tier1)-1], true
}

// Patterns returns a copy of every Tier 2 record.
func (m *TradeMemory) Patterns() []types.PatternMemory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PatternMemory, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Snapshot returns a copy of the accumulators.
func (m *TradeMemory) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Stats summarizes the memory for operators.
type Stats struct {
	TotalTrades        int
	Wins               int
	WinRate            float64
	OptimalExitMinutes float64
	HotTrades          int
	Patterns           int
	PendingWrites      int
}

// Stats returns totals across the whole history.
func (m *TradeMemory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{
		TotalTrades:        m.state.TotalTrades,
		Wins:               m.state.TotalWins,
		OptimalExitMinutes: m.state.OptimalExitMinutes,
		HotTrades:          len(m.tier1),
		Patterns:           len(m.patterns),
		PendingWrites:      len(m.pendingTrades) + len(m.pendingPatterns),
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	return s
}
