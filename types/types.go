package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES - Avoid import cycles
// ═══════════════════════════════════════════════════════════════════════════════

// NativeMint is the wrapped SOL mint used as the funding asset for every trade.
const NativeMint = "So11111111111111111111111111111111111111112"

// NativeDecimals is the decimal count of the native asset (lamports).
const NativeDecimals = 9

// PositionStatus is the lifecycle state of a position
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

var hundred = decimal.NewFromInt(100)

// Position represents an open (or closed) trade
type Position struct {
	ID           string
	TokenAddress string
	TokenSymbol  string

	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	Amount       decimal.Decimal // token units
	AmountBase   decimal.Decimal // SOL spent

	TPPercent decimal.Decimal
	SLPercent decimal.Decimal
	TPPrice   decimal.Decimal
	SLPrice   decimal.Decimal

	TPTriggered bool
	SLTriggered bool

	Source   string // "primary" or "fallback"
	Venue    string // venue that filled the entry
	TxRef    string
	OpenedAt time.Time

	// Entry context kept for trade memory
	SignalType     string
	MarketRegime   string
	SentimentScore float64

	Status     PositionStatus
	ExitTxRef  string
	ExitSource string
	ExitPrice  decimal.Decimal
	ExitReason string
	ClosedAt   *time.Time
}

// IsOpen reports whether the position is still live
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen || p.Status == ""
}

// RecomputeThresholds derives TP/SL prices from entry price and percents.
func (p *Position) RecomputeThresholds() {
	p.TPPrice = p.EntryPrice.Mul(decimal.NewFromInt(1).Add(p.TPPercent.Div(hundred)))
	p.SLPrice = p.EntryPrice.Mul(decimal.NewFromInt(1).Sub(p.SLPercent.Div(hundred)))
}

// PnLPercent returns (current - entry) / entry * 100.
func (p *Position) PnLPercent() decimal.Decimal {
	return PercentChange(p.EntryPrice, p.CurrentPrice)
}

// Clone returns a copy safe to hand to other goroutines
func (p *Position) Clone() *Position {
	c := *p
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// PercentChange returns (to - from) / from * 100, or zero when from is zero.
func PercentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred)
}

// TrailingStop is the optional trailing companion of a position
type TrailingStop struct {
	PositionID       string
	TrailPercent     decimal.Decimal
	HighestPrice     decimal.Decimal
	CurrentStopPrice decimal.Decimal
	Active           bool
	Triggered        bool
	UpdatedAt        time.Time
}

// NewTrailingStop arms a trailing stop at the given starting price.
func NewTrailingStop(positionID string, trailPercent, startPrice decimal.Decimal) *TrailingStop {
	ts := &TrailingStop{
		PositionID:   positionID,
		TrailPercent: trailPercent,
		HighestPrice: startPrice,
		Active:       true,
		UpdatedAt:    time.Now(),
	}
	ts.RecomputeStop()
	return ts
}

// RecomputeStop sets CurrentStopPrice = HighestPrice * (1 - trail/100).
func (t *TrailingStop) RecomputeStop() {
	t.CurrentStopPrice = t.HighestPrice.Mul(decimal.NewFromInt(1).Sub(t.TrailPercent.Div(hundred)))
}

// Clone returns a copy of the trailing stop
func (t *TrailingStop) Clone() *TrailingStop {
	c := *t
	return &c
}

// AlertType identifies which exit rule fired
type AlertType string

const (
	AlertTakeProfit   AlertType = "TAKE_PROFIT"
	AlertStopLoss     AlertType = "STOP_LOSS"
	AlertTrailingStop AlertType = "TRAILING_STOP"
)

// Alert is emitted by the exit engine for the alert sink and the exit executor
type Alert struct {
	Type       AlertType
	Position   *Position // snapshot at evaluation time
	Price      decimal.Decimal
	PnLPercent decimal.Decimal
	CreatedAt  time.Time
}

// Swap sources
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

// SwapResult is the normalized outcome of one swap attempt
type SwapResult struct {
	Success       bool
	Source        string
	Venue         string
	TxRef         string
	AmountOut     decimal.Decimal // human units of the output token
	AmountOutBase decimal.Decimal // smallest indivisible units
	PriceImpact   decimal.Decimal
	Error         error
}

// Outcome classes
const (
	OutcomeWin       = "WIN"
	OutcomeLoss      = "LOSS"
	OutcomeBreakeven = "BREAKEVEN"
)

// TradeOutcome is one Tier 1 record per closed trade
type TradeOutcome struct {
	ID             string
	PositionID     string
	TokenSymbol    string
	TokenAddress   string
	EntryPrice     float64
	ExitPrice      float64
	AmountBase     float64
	PnLPercent     float64
	PnLSol         float64
	HoldMinutes    float64
	MarketRegime   string
	SentimentScore float64
	SignalType     string
	Outcome        string
	ExitReason     string
	Lessons        []string
	ClosedAt       time.Time
}

// Pattern types
const (
	PatternMomentum       = "momentum"
	PatternReversalFailed = "reversal_failed"
	PatternNeutral        = "neutral"
)

// PatternMemory is a Tier 2 aggregate per signal type
type PatternMemory struct {
	PatternID          string
	SignalType         string
	PatternType        string
	WinRate            float64
	AvgReturn          float64
	AvgHoldMinutes     float64
	FavorableRegimes   []string
	UnfavorableRegimes []string
	TradeCount         int
	Confidence         float64
	CreatedAt          time.Time
}

// Recommendation actions
const (
	ActionBuy     = "BUY"
	ActionAvoid   = "AVOID"
	ActionNeutral = "NEUTRAL"
)

// Recommendation answers a trade-memory query
type Recommendation struct {
	Action               string
	Confidence           float64
	ExpectedReturn       float64
	SuggestedHoldMinutes float64
	Reasons              []string
	Warnings             []string
}
