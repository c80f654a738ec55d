package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Threshold bounds for the buy path.
var (
	MinTakeProfitPercent = decimal.NewFromInt(5)
	MaxTakeProfitPercent = decimal.NewFromInt(300)
	MaxStopLossPercent   = decimal.NewFromInt(100)

	hundred = decimal.NewFromInt(100)
)

// ErrInvalidThreshold is wrapped by every ThresholdError.
var ErrInvalidThreshold = errors.New("invalid exit threshold")

// ThresholdError describes a rejected TP/SL value
type ThresholdError struct {
	Field  string // "tp_percent" or "sl_percent"
	Value  decimal.Decimal
	Reason string
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("%s=%s: %s", e.Field, e.Value.String(), e.Reason)
}

func (e *ThresholdError) Unwrap() error { return ErrInvalidThreshold }

// ValidateThresholds checks take-profit and stop-loss percentages.
// Values are never clamped; callers must reject the request.
func ValidateThresholds(tpPercent, slPercent decimal.Decimal) error {
	switch {
	case tpPercent.LessThanOrEqual(decimal.Zero):
		return &ThresholdError{Field: "tp_percent", Value: tpPercent, Reason: "must be positive"}
	case tpPercent.LessThan(MinTakeProfitPercent):
		return &ThresholdError{Field: "tp_percent", Value: tpPercent, Reason: "below minimum of " + MinTakeProfitPercent.String() + "%"}
	case tpPercent.GreaterThan(MaxTakeProfitPercent):
		return &ThresholdError{Field: "tp_percent", Value: tpPercent, Reason: "unrealistic, above " + MaxTakeProfitPercent.String() + "%"}
	}

	switch {
	case slPercent.LessThanOrEqual(decimal.Zero):
		return &ThresholdError{Field: "sl_percent", Value: slPercent, Reason: "must be positive"}
	case slPercent.GreaterThanOrEqual(MaxStopLossPercent):
		return &ThresholdError{Field: "sl_percent", Value: slPercent, Reason: "must be below 100%"}
	}

	return nil
}
