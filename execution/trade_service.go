package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/id"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE SERVICE - Buy and sell paths
// ═══════════════════════════════════════════════════════════════════════════════
//
//   Buy:  validate TP/SL → swap SOL→token → open position (+ trailing stop)
//   Sell: lock position → swap token→SOL → close or shrink → record outcome
//
// ═══════════════════════════════════════════════════════════════════════════════

var hundred = decimal.NewFromInt(100)

// Swapper executes swaps. *SwapRouter implements it.
type Swapper interface {
	Swap(ctx context.Context, req SwapRequest) (*types.SwapResult, error)
}

// TradeRecorder receives closed trades. *memory.TradeMemory implements it.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, in memory.TradeInput) (*types.TradeOutcome, error)
}

// CloseObserver is told the PnL of every full close. *risk.KillSwitch implements it.
type CloseObserver interface {
	RecordClose(pnlPercent float64)
}

// TradeConfig holds trade path settings
type TradeConfig struct {
	WalletAddress string
	SlippageBps   int
	AllowFallback bool
}

// TradeService owns the buy and sell paths.
type TradeService struct {
	router  Swapper
	store   *positions.Store
	tokens  TokenInfo
	memory  TradeRecorder
	closes  CloseObserver
	tracker *risk.TrailingStopTracker
	cfg     TradeConfig

	now func() time.Time
}

// TradeOption configures a TradeService
type TradeOption func(*TradeService)

// WithRecorder records every full close into trade memory.
func WithRecorder(r TradeRecorder) TradeOption {
	return func(s *TradeService) { s.memory = r }
}

// WithCloseObserver reports every full close, e.g. to the kill switch.
func WithCloseObserver(o CloseObserver) TradeOption {
	return func(s *TradeService) { s.closes = o }
}

// NewTradeService creates the buy/sell service.
func NewTradeService(router Swapper, store *positions.Store, tokens TokenInfo, cfg TradeConfig, opts ...TradeOption) *TradeService {
	s := &TradeService{
		router:  router,
		store:   store,
		tokens:  tokens,
		tracker: risk.NewTrailingStopTracker(),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuyRequest opens a position by spending AmountSol of the native asset.
type BuyRequest struct {
	TokenAddress string
	TokenSymbol  string
	AmountSol    decimal.Decimal

	TPPercent    decimal.Decimal
	SLPercent    decimal.Decimal
	TrailPercent decimal.Decimal // zero means no trailing stop

	SlippageBps     int
	DisableFallback bool

	SignalType     string
	MarketRegime   string
	SentimentScore float64
}

// Buy validates thresholds, swaps and opens the position. Invalid thresholds
// are rejected before any venue is contacted.
func (s *TradeService) Buy(ctx context.Context, req BuyRequest) (*types.Position, *types.SwapResult, error) {
	if err := risk.ValidateThresholds(req.TPPercent, req.SLPercent); err != nil {
		return nil, nil, &TradingError{Code: CodeInvalidRequest, Reason: CodeInvalidRequest, Message: err.Error(), Cause: err}
	}
	if !req.TrailPercent.IsZero() {
		if req.TrailPercent.LessThan(decimal.Zero) || req.TrailPercent.GreaterThanOrEqual(hundred) {
			return nil, nil, &TradingError{Code: CodeInvalidRequest, Reason: CodeInvalidRequest, Message: risk.ErrInvalidTrail.Error(), Cause: risk.ErrInvalidTrail}
		}
	}
	if !req.AmountSol.IsPositive() {
		return nil, nil, invalid("amount must be positive")
	}

	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = s.cfg.SlippageBps
	}

	result, err := s.router.Swap(ctx, SwapRequest{
		FromToken:     types.NativeMint,
		ToToken:       req.TokenAddress,
		Amount:        ToBase(req.AmountSol, types.NativeDecimals),
		WalletAddress: s.cfg.WalletAddress,
		SlippageBps:   slippage,
		AllowFallback: s.cfg.AllowFallback && !req.DisableFallback,
	})
	if err != nil {
		return nil, result, err
	}
	if !result.AmountOut.IsPositive() {
		// The swap landed but reported no fill; the operator has to check the wallet.
		log.Error().
			Str("tx", result.TxRef).
			Str("venue", result.Venue).
			Str("token", req.TokenSymbol).
			Msg("❌ Buy executed with zero reported output, position not recorded")
		return nil, result, &TradingError{Code: CodeNoRouteFound, Reason: CodeNoRouteFound, Venue: result.Venue, Message: "swap returned zero output"}
	}

	pos := &types.Position{
		ID:             id.WithPrefix("pos"),
		TokenAddress:   req.TokenAddress,
		TokenSymbol:    req.TokenSymbol,
		EntryPrice:     req.AmountSol.Div(result.AmountOut),
		Amount:         result.AmountOut,
		AmountBase:     req.AmountSol,
		TPPercent:      req.TPPercent,
		SLPercent:      req.SLPercent,
		Source:         result.Source,
		Venue:          result.Venue,
		TxRef:          result.TxRef,
		OpenedAt:       s.now(),
		SignalType:     req.SignalType,
		MarketRegime:   req.MarketRegime,
		SentimentScore: req.SentimentScore,
		Status:         types.PositionOpen,
	}
	pos.CurrentPrice = pos.EntryPrice
	pos.RecomputeThresholds()

	var trailing *types.TrailingStop
	if req.TrailPercent.IsPositive() {
		trailing, err = s.tracker.Arm(pos.ID, req.TrailPercent, pos.EntryPrice)
		if err != nil {
			return nil, result, err
		}
	}

	if err := s.store.Open(ctx, pos, trailing); err != nil {
		// The swap already happened; surface loudly so the operator can reconcile.
		log.Error().Err(err).Str("tx", result.TxRef).Str("token", req.TokenSymbol).Msg("❌ Filled buy could not be recorded")
		return nil, result, fmt.Errorf("record position: %w", err)
	}

	opened, _, err := s.store.Get(pos.ID)
	if err != nil {
		return nil, result, err
	}
	return opened, result, nil
}

// Sell sells percent (0,100] of a position back to the native asset.
func (s *TradeService) Sell(ctx context.Context, positionID string, percent decimal.Decimal) (*types.SwapResult, error) {
	return s.sell(ctx, positionID, percent, "MANUAL")
}

func (s *TradeService) sell(ctx context.Context, positionID string, percent decimal.Decimal, reason string) (*types.SwapResult, error) {
	if !percent.IsPositive() || percent.GreaterThan(hundred) {
		return nil, invalid("sell percent must be in (0, 100]")
	}
	full := percent.Equal(hundred)

	var result *types.SwapResult
	var closed *types.Position

	err := s.store.Mutate(ctx, positionID, func(pos *types.Position, ts *types.TrailingStop) error {
		tokens := pos.Amount
		if !full {
			tokens = pos.Amount.Mul(percent).Div(hundred)
		}
		decimals := ResolveDecimals(ctx, s.tokens, pos.TokenAddress)
		base := ToBase(tokens, decimals)
		if !base.IsPositive() {
			return invalid("nothing to sell")
		}

		var err error
		result, err = s.router.Swap(ctx, SwapRequest{
			FromToken:     pos.TokenAddress,
			ToToken:       types.NativeMint,
			Amount:        base,
			WalletAddress: s.cfg.WalletAddress,
			SlippageBps:   s.cfg.SlippageBps,
			AllowFallback: true,
		})
		if err != nil {
			return err
		}

		exitPrice := result.AmountOut.Div(tokens)
		if full {
			positions.MarkClosed(pos, ts, positions.ExitInfo{
				TxRef:  result.TxRef,
				Source: result.Source,
				Price:  exitPrice,
				Reason: reason,
			}, s.now())
			closed = pos.Clone()
			return nil
		}

		pos.Amount = pos.Amount.Sub(tokens)
		pos.AmountBase = pos.AmountBase.Sub(pos.AmountBase.Mul(percent).Div(hundred))
		log.Info().
			Str("id", pos.ID).
			Str("sold", tokens.String()).
			Str("remaining", pos.Amount.String()).
			Msg("✂️ Partial sell")
		return nil
	})
	if err != nil {
		return result, err
	}

	if closed != nil {
		log.Info().
			Str("id", closed.ID).
			Str("token", closed.TokenSymbol).
			Str("reason", reason).
			Str("exit_tx", closed.ExitTxRef).
			Str("pnl", types.PercentChange(closed.EntryPrice, closed.ExitPrice).StringFixed(2)).
			Msg("📉 Position closed")
		s.recordClose(ctx, closed)
	}
	return result, nil
}

func (s *TradeService) recordClose(ctx context.Context, pos *types.Position) {
	pnl := types.PercentChange(pos.EntryPrice, pos.ExitPrice).InexactFloat64()
	if s.closes != nil {
		s.closes.RecordClose(pnl)
	}
	if s.memory == nil {
		return
	}

	closedAt := s.now()
	if pos.ClosedAt != nil {
		closedAt = *pos.ClosedAt
	}
	_, err := s.memory.RecordTrade(ctx, memory.TradeInput{
		PositionID:     pos.ID,
		TokenSymbol:    pos.TokenSymbol,
		TokenAddress:   pos.TokenAddress,
		EntryPrice:     pos.EntryPrice.InexactFloat64(),
		ExitPrice:      pos.ExitPrice.InexactFloat64(),
		AmountBase:     pos.AmountBase.InexactFloat64(),
		OpenedAt:       pos.OpenedAt,
		ClosedAt:       closedAt,
		MarketRegime:   pos.MarketRegime,
		SentimentScore: pos.SentimentScore,
		SignalType:     pos.SignalType,
		ExitReason:     pos.ExitReason,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("id", pos.ID).Msg("⚠️ Failed to record trade outcome")
	}
}
