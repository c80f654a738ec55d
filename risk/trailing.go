package risk

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ErrInvalidTrail is returned when arming a trailing stop with a bad percent.
var ErrInvalidTrail = errors.New("trail percent must be in (0, 100)")

// TrailingStopTracker ratchets trailing stops toward the high-water mark.
type TrailingStopTracker struct {
	now func() time.Time
}

// NewTrailingStopTracker creates a tracker
func NewTrailingStopTracker() *TrailingStopTracker {
	return &TrailingStopTracker{now: time.Now}
}

// Arm creates an active trailing stop anchored at startPrice.
func (t *TrailingStopTracker) Arm(positionID string, trailPercent, startPrice decimal.Decimal) (*types.TrailingStop, error) {
	if trailPercent.LessThanOrEqual(decimal.Zero) || trailPercent.GreaterThanOrEqual(hundred) {
		return nil, ErrInvalidTrail
	}
	ts := types.NewTrailingStop(positionID, trailPercent, startPrice)
	ts.UpdatedAt = t.now()
	return ts, nil
}

// Update feeds one price observation and reports whether the stop fired.
// A new high only ratchets the stop; it never fires on the same observation.
// Triggered stops are terminal and ignore further prices.
func (t *TrailingStopTracker) Update(ts *types.TrailingStop, price decimal.Decimal) bool {
	if ts == nil || !ts.Active || ts.Triggered {
		return false
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return false
	}

	if t.Ratchet(ts, price) {
		return false
	}

	if price.LessThanOrEqual(ts.CurrentStopPrice) {
		ts.Triggered = true
		ts.Active = false
		ts.UpdatedAt = t.now()
		return true
	}

	return false
}

// Ratchet folds price into the high-water mark without checking the trigger.
// It reports whether the stop moved.
func (t *TrailingStopTracker) Ratchet(ts *types.TrailingStop, price decimal.Decimal) bool {
	if ts == nil || !ts.Active || ts.Triggered || !price.GreaterThan(ts.HighestPrice) {
		return false
	}
	ts.HighestPrice = price
	ts.RecomputeStop()
	ts.UpdatedAt = t.now()
	log.Debug().
		Str("position", ts.PositionID).
		Str("high", ts.HighestPrice.String()).
		Str("stop", ts.CurrentStopPrice.String()).
		Msg("Trailing stop raised")
	return true
}
