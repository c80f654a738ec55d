package database

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// MemoryStateVersion is written with every accumulator snapshot.
const MemoryStateVersion = 1

// Models

type PositionRecord struct {
	ID             string `gorm:"primaryKey"`
	TokenAddress   string `gorm:"index"`
	TokenSymbol    string
	EntryPrice     decimal.Decimal `gorm:"type:decimal(38,18)"`
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(38,18)"`
	Amount         decimal.Decimal `gorm:"type:decimal(38,18)"`
	AmountBase     decimal.Decimal `gorm:"type:decimal(38,18)"`
	TPPercent      decimal.Decimal `gorm:"type:decimal(10,4)"`
	SLPercent      decimal.Decimal `gorm:"type:decimal(10,4)"`
	TPPrice        decimal.Decimal `gorm:"type:decimal(38,18)"`
	SLPrice        decimal.Decimal `gorm:"type:decimal(38,18)"`
	TPTriggered    bool
	SLTriggered    bool
	Source         string
	Venue          string
	TxRef          string
	SignalType     string
	MarketRegime   string
	SentimentScore float64
	Status         string `gorm:"index"` // "OPEN", "CLOSED"
	ExitTxRef      string
	ExitSource     string
	ExitPrice      decimal.Decimal `gorm:"type:decimal(38,18)"`
	ExitReason     string
	OpenedAt       time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (PositionRecord) TableName() string { return "positions" }

type TrailingStopRecord struct {
	PositionID       string          `gorm:"primaryKey"`
	TrailPercent     decimal.Decimal `gorm:"type:decimal(10,4)"`
	HighestPrice     decimal.Decimal `gorm:"type:decimal(38,18)"`
	CurrentStopPrice decimal.Decimal `gorm:"type:decimal(38,18)"`
	Active           bool            `gorm:"index"`
	Triggered        bool
	UpdatedAt        time.Time
}

func (TrailingStopRecord) TableName() string { return "trailing_stops" }

type TradeOutcomeRecord struct {
	ID             string `gorm:"primaryKey"`
	PositionID     string `gorm:"index"`
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
	SignalType     string `gorm:"index"`
	Outcome        string
	ExitReason     string
	Lessons        []string  `gorm:"serializer:json"`
	ClosedAt       time.Time `gorm:"index"`
	CreatedAt      time.Time
}

func (TradeOutcomeRecord) TableName() string { return "trade_outcomes" }

type PatternRecord struct {
	PatternID          string `gorm:"primaryKey"`
	SignalType         string `gorm:"index"`
	PatternType        string
	WinRate            float64
	AvgReturn          float64
	AvgHoldMinutes     float64
	FavorableRegimes   []string `gorm:"serializer:json"`
	UnfavorableRegimes []string `gorm:"serializer:json"`
	TradeCount         int
	Confidence         float64
	CreatedAt          time.Time `gorm:"index"`
}

func (PatternRecord) TableName() string { return "patterns" }

// MemoryStateRecord holds the single accumulator snapshot row.
type MemoryStateRecord struct {
	ID            uint `gorm:"primaryKey"`
	SchemaVersion int
	Blob          string `gorm:"type:text"`
	UpdatedAt     time.Time
}

func (MemoryStateRecord) TableName() string { return "memory_state" }

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSIONS
// ═══════════════════════════════════════════════════════════════════════════════

func positionRecord(p *types.Position) *PositionRecord {
	status := p.Status
	if status == "" {
		status = types.PositionOpen
	}
	return &PositionRecord{
		ID:             p.ID,
		TokenAddress:   p.TokenAddress,
		TokenSymbol:    p.TokenSymbol,
		EntryPrice:     p.EntryPrice,
		CurrentPrice:   p.CurrentPrice,
		Amount:         p.Amount,
		AmountBase:     p.AmountBase,
		TPPercent:      p.TPPercent,
		SLPercent:      p.SLPercent,
		TPPrice:        p.TPPrice,
		SLPrice:        p.SLPrice,
		TPTriggered:    p.TPTriggered,
		SLTriggered:    p.SLTriggered,
		Source:         p.Source,
		Venue:          p.Venue,
		TxRef:          p.TxRef,
		SignalType:     p.SignalType,
		MarketRegime:   p.MarketRegime,
		SentimentScore: p.SentimentScore,
		Status:         string(status),
		ExitTxRef:      p.ExitTxRef,
		ExitSource:     p.ExitSource,
		ExitPrice:      p.ExitPrice,
		ExitReason:     p.ExitReason,
		OpenedAt:       p.OpenedAt,
		ClosedAt:       p.ClosedAt,
	}
}

func (r *PositionRecord) toPosition() *types.Position {
	p := &types.Position{
		ID:             r.ID,
		TokenAddress:   r.TokenAddress,
		TokenSymbol:    r.TokenSymbol,
		EntryPrice:     r.EntryPrice,
		CurrentPrice:   r.CurrentPrice,
		Amount:         r.Amount,
		AmountBase:     r.AmountBase,
		TPPercent:      r.TPPercent,
		SLPercent:      r.SLPercent,
		TPPrice:        r.TPPrice,
		SLPrice:        r.SLPrice,
		TPTriggered:    r.TPTriggered,
		SLTriggered:    r.SLTriggered,
		Source:         r.Source,
		Venue:          r.Venue,
		TxRef:          r.TxRef,
		SignalType:     r.SignalType,
		MarketRegime:   r.MarketRegime,
		SentimentScore: r.SentimentScore,
		Status:         types.PositionStatus(r.Status),
		ExitTxRef:      r.ExitTxRef,
		ExitSource:     r.ExitSource,
		ExitPrice:      r.ExitPrice,
		ExitReason:     r.ExitReason,
		OpenedAt:       r.OpenedAt,
		ClosedAt:       r.ClosedAt,
	}
	if p.Status == "" {
		p.Status = types.PositionOpen
	}
	// rows written before thresholds were stored
	if p.TPPrice.IsZero() || p.SLPrice.IsZero() {
		p.RecomputeThresholds()
	}
	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = p.EntryPrice
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = r.CreatedAt
	}
	return p
}

func trailingStopRecord(ts *types.TrailingStop) *TrailingStopRecord {
	return &TrailingStopRecord{
		PositionID:       ts.PositionID,
		TrailPercent:     ts.TrailPercent,
		HighestPrice:     ts.HighestPrice,
		CurrentStopPrice: ts.CurrentStopPrice,
		Active:           ts.Active,
		Triggered:        ts.Triggered,
		UpdatedAt:        ts.UpdatedAt,
	}
}

func (r *TrailingStopRecord) toTrailingStop() *types.TrailingStop {
	ts := &types.TrailingStop{
		PositionID:       r.PositionID,
		TrailPercent:     r.TrailPercent,
		HighestPrice:     r.HighestPrice,
		CurrentStopPrice: r.CurrentStopPrice,
		Active:           r.Active,
		Triggered:        r.Triggered,
		UpdatedAt:        r.UpdatedAt,
	}
	if ts.CurrentStopPrice.IsZero() {
		ts.RecomputeStop()
	}
	return ts
}

func tradeOutcomeRecord(o *types.TradeOutcome) *TradeOutcomeRecord {
	return &TradeOutcomeRecord{
		ID:             o.ID,
		PositionID:     o.PositionID,
		TokenSymbol:    o.TokenSymbol,
		TokenAddress:   o.TokenAddress,
		EntryPrice:     o.EntryPrice,
		ExitPrice:      o.ExitPrice,
		AmountBase:     o.AmountBase,
		PnLPercent:     o.PnLPercent,
		PnLSol:         o.PnLSol,
		HoldMinutes:    o.HoldMinutes,
		MarketRegime:   o.MarketRegime,
		SentimentScore: o.SentimentScore,
		SignalType:     o.SignalType,
		Outcome:        o.Outcome,
		ExitReason:     o.ExitReason,
		Lessons:        o.Lessons,
		ClosedAt:       o.ClosedAt,
	}
}

func (r *TradeOutcomeRecord) toOutcome() types.TradeOutcome {
	return types.TradeOutcome{
		ID:             r.ID,
		PositionID:     r.PositionID,
		TokenSymbol:    r.TokenSymbol,
		TokenAddress:   r.TokenAddress,
		EntryPrice:     r.EntryPrice,
		ExitPrice:      r.ExitPrice,
		AmountBase:     r.AmountBase,
		PnLPercent:     r.PnLPercent,
		PnLSol:         r.PnLSol,
		HoldMinutes:    r.HoldMinutes,
		MarketRegime:   r.MarketRegime,
		SentimentScore: r.SentimentScore,
		SignalType:     r.SignalType,
		Outcome:        r.Outcome,
		ExitReason:     r.ExitReason,
		Lessons:        r.Lessons,
		ClosedAt:       r.ClosedAt,
	}
}

func patternRecord(p types.PatternMemory) *PatternRecord {
	return &PatternRecord{
		PatternID:          p.PatternID,
		SignalType:         p.SignalType,
		PatternType:        p.PatternType,
		WinRate:            p.WinRate,
		AvgReturn:          p.AvgReturn,
		AvgHoldMinutes:     p.AvgHoldMinutes,
		FavorableRegimes:   p.FavorableRegimes,
		UnfavorableRegimes: p.UnfavorableRegimes,
		TradeCount:         p.TradeCount,
		Confidence:         p.Confidence,
		CreatedAt:          p.CreatedAt,
	}
}

func (r *PatternRecord) toPattern() types.PatternMemory {
	return types.PatternMemory{
		PatternID:          r.PatternID,
		SignalType:         r.SignalType,
		PatternType:        r.PatternType,
		WinRate:            r.WinRate,
		AvgReturn:          r.AvgReturn,
		AvgHoldMinutes:     r.AvgHoldMinutes,
		FavorableRegimes:   r.FavorableRegimes,
		UnfavorableRegimes: r.UnfavorableRegimes,
		TradeCount:         r.TradeCount,
		Confidence:         r.Confidence,
		CreatedAt:          r.CreatedAt,
	}
}
