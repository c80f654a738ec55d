package risk

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EXIT TRIGGER ENGINE - TP / SL / trailing stop evaluation
// ═══════════════════════════════════════════════════════════════════════════════
//
// Per position:   OPEN → TP_HIT | SL_HIT → CLOSED
// Trailing stop:  ARMED → TRAILING (repeated) → TRIGGERED
//
// Take profit is checked before stop loss. A position yields at most one
// alert per pass, and every latch flips false→true at most once.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ExitTriggerEngine evaluates positions against their exit thresholds.
// It holds no per-position state; latches live on the values passed in.
type ExitTriggerEngine struct {
	trailing *TrailingStopTracker
	now      func() time.Time
}

// NewExitTriggerEngine creates an engine with a default trailing tracker
func NewExitTriggerEngine() *ExitTriggerEngine {
	return &ExitTriggerEngine{
		trailing: NewTrailingStopTracker(),
		now:      time.Now,
	}
}

// Evaluate checks every open position and mutates latches in place.
// stops is keyed by position ID and may be nil or sparse.
func (e *ExitTriggerEngine) Evaluate(positions []*types.Position, stops map[string]*types.TrailingStop) []types.Alert {
	var alerts []types.Alert

	for _, pos := range positions {
		if pos == nil || !pos.IsOpen() {
			continue
		}

		ts := stops[pos.ID]

		if alert, ok := e.checkThresholds(pos); ok {
			alerts = append(alerts, alert)
			// one alert per pass, but the high-water mark still moves
			e.trailing.Ratchet(ts, pos.CurrentPrice)
			continue
		}

		if ts == nil {
			continue
		}
		if e.trailing.Update(ts, pos.CurrentPrice) {
			alerts = append(alerts, e.newAlert(types.AlertTrailingStop, pos))
			log.Info().
				Str("position", pos.ID).
				Str("token", pos.TokenSymbol).
				Str("price", pos.CurrentPrice.String()).
				Str("stop", ts.CurrentStopPrice.String()).
				Msg("📉 Trailing stop hit")
		}
	}

	return alerts
}

func (e *ExitTriggerEngine) checkThresholds(pos *types.Position) (types.Alert, bool) {
	if pos.EntryPrice.LessThanOrEqual(decimal.Zero) {
		return types.Alert{}, false
	}
	pnl := pos.PnLPercent()

	if !pos.TPTriggered && pnl.GreaterThanOrEqual(pos.TPPercent) {
		pos.TPTriggered = true
		log.Info().
			Str("position", pos.ID).
			Str("token", pos.TokenSymbol).
			Str("pnl", pnl.StringFixed(2)).
			Msg("🎯 Take profit hit")
		return e.newAlert(types.AlertTakeProfit, pos), true
	}

	if !pos.SLTriggered && pnl.LessThanOrEqual(pos.SLPercent.Neg()) {
		pos.SLTriggered = true
		log.Info().
			Str("position", pos.ID).
			Str("token", pos.TokenSymbol).
			Str("pnl", pnl.StringFixed(2)).
			Msg("🛑 Stop loss hit")
		return e.newAlert(types.AlertStopLoss, pos), true
	}

	return types.Alert{}, false
}

func (e *ExitTriggerEngine) newAlert(t types.AlertType, pos *types.Position) types.Alert {
	return types.Alert{
		Type:       t,
		Position:   pos.Clone(),
		Price:      pos.CurrentPrice,
		PnLPercent: pos.PnLPercent(),
		CreatedAt:  e.now(),
	}
}
