package execution

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/solana"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SWAP ROUTER - Dual venue execution with a single fallback hop
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow:
//   quote(primary) → execute(primary) ─ok──────────────→ source=primary
//         │ any error
//         ├─ AllowFallback=false ───────────────────────→ FALLBACK_DISABLED
//         └─ quote(fallback) → execute(fallback) ─ok───→ source=fallback
//                                   │ any error
//                                   └───────────────────→ BOTH_VENUES_FAILED
//
// The fallback always gets a fresh quote. There are no retries.
//
// ═══════════════════════════════════════════════════════════════════════════════

// DefaultSlippageBps applies when a request leaves SlippageBps at zero.
const DefaultSlippageBps = 100

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10000

// SwapRequest describes one swap. Amount is in base units of FromToken.
type SwapRequest struct {
	FromToken     string
	ToToken       string
	Amount        decimal.Decimal
	WalletAddress string
	SlippageBps   int
	AllowFallback bool
}

// IsEntry reports whether the swap spends the native asset, i.e. opens exposure.
func (r SwapRequest) IsEntry() bool {
	return r.FromToken == types.NativeMint
}

// Gate is consulted before entries. risk.KillSwitch implements it.
type Gate interface {
	Check() error
}

// RouterOption configures a SwapRouter
type RouterOption func(*SwapRouter)

// WithKillSwitch blocks entries while the gate reports an error.
func WithKillSwitch(g Gate) RouterOption {
	return func(r *SwapRouter) { r.gate = g }
}

// WithMetrics records swap metrics.
func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(r *SwapRouter) { r.metrics = m }
}

// WithCallTimeout bounds each quote or execute call.
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *SwapRouter) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithDefaultSlippage sets the slippage used when a request carries none.
func WithDefaultSlippage(bps int) RouterOption {
	return func(r *SwapRouter) {
		if bps > 0 && bps <= MaxSlippageBps {
			r.defaultSlippage = bps
		}
	}
}

// SwapRouter executes swaps against a primary venue with one fallback hop.
type SwapRouter struct {
	primary  venue.Client
	fallback venue.Client
	tokens   TokenInfo

	gate            Gate
	metrics         *metrics.Metrics
	callTimeout     time.Duration
	defaultSlippage int
}

// NewSwapRouter creates a router. fallback may be nil.
func NewSwapRouter(primary, fallback venue.Client, tokens TokenInfo, opts ...RouterOption) *SwapRouter {
	r := &SwapRouter{
		primary:         primary,
		fallback:        fallback,
		tokens:          tokens,
		callTimeout:     venue.DefaultTimeout,
		defaultSlippage: DefaultSlippageBps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SwapRouter) validate(req *SwapRequest) *TradingError {
	if err := solana.ValidateMint(req.FromToken); err != nil {
		return invalid("from token: %v", err)
	}
	if err := solana.ValidateMint(req.ToToken); err != nil {
		return invalid("to token: %v", err)
	}
	if req.FromToken == req.ToToken {
		return invalid("from and to token are the same")
	}
	if err := solana.ValidateWallet(req.WalletAddress); err != nil {
		return invalid("wallet: %v", err)
	}
	if !req.Amount.IsPositive() {
		return invalid("amount must be positive")
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = r.defaultSlippage
	}
	if req.SlippageBps < 0 || req.SlippageBps > MaxSlippageBps {
		return invalid("slippage %d bps out of range", req.SlippageBps)
	}
	return nil
}

// Swap executes req. On failure the returned result has Success=false and
// Error set to the same *TradingError that is returned as err.
func (r *SwapRouter) Swap(ctx context.Context, req SwapRequest) (*types.SwapResult, error) {
	if terr := r.validate(&req); terr != nil {
		return failed(terr)
	}

	if req.IsEntry() && r.gate != nil {
		if err := r.gate.Check(); err != nil {
			log.Warn().Err(err).Str("to", req.ToToken).Msg("🚫 Entry blocked by kill switch")
			return failed(&TradingError{Code: CodeKillSwitchActive, Reason: CodeKillSwitchActive, Cause: err})
		}
	}

	exec, primaryErr := r.attempt(ctx, r.primary, types.SourcePrimary, req)
	if primaryErr == nil {
		return r.result(ctx, req, types.SourcePrimary, exec), nil
	}

	primaryCode := codeForVenue(primaryErr)
	if !req.AllowFallback || r.fallback == nil {
		log.Warn().
			Err(primaryErr).
			Str("venue", r.primary.Name()).
			Msg("❌ Primary swap failed, fallback disabled")
		return failed(&TradingError{
			Code:   CodeFallbackDisabled,
			Reason: primaryCode,
			Venue:  r.primary.Name(),
			Cause:  primaryErr,
		})
	}

	log.Warn().
		Err(primaryErr).
		Str("primary", r.primary.Name()).
		Str("fallback", r.fallback.Name()).
		Msg("⚠️ Primary swap failed, trying fallback")
	r.metrics.IncFallback()

	exec, fallbackErr := r.attempt(ctx, r.fallback, types.SourceFallback, req)
	if fallbackErr == nil {
		return r.result(ctx, req, types.SourceFallback, exec), nil
	}

	log.Error().
		Err(fallbackErr).
		Str("fallback", r.fallback.Name()).
		Msg("❌ Fallback swap failed")
	return failed(&TradingError{
		Code:         CodeBothVenuesFailed,
		Reason:       codeForVenue(fallbackErr),
		Venue:        r.fallback.Name(),
		Cause:        fallbackErr,
		PrimaryCause: primaryErr,
	})
}

// attempt runs a fresh quote and an execute against one venue.
func (r *SwapRouter) attempt(ctx context.Context, v venue.Client, source string, req SwapRequest) (*venue.Execution, error) {
	start := time.Now()

	qctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	quote, err := v.Quote(qctx, venue.QuoteRequest{
		InputMint:   req.FromToken,
		OutputMint:  req.ToToken,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
	})
	cancel()
	if err != nil {
		r.metrics.ObserveSwap(v.Name(), source, false, time.Since(start))
		return nil, err
	}

	ectx, cancel := context.WithTimeout(ctx, r.callTimeout)
	exec, err := v.Execute(ectx, quote, req.WalletAddress)
	cancel()
	r.metrics.ObserveSwap(v.Name(), source, err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("venue", v.Name()).
		Str("source", source).
		Str("tx", exec.TxRef).
		Str("out", exec.OutAmount.String()).
		Dur("took", time.Since(start)).
		Msg("✅ Swap executed")
	return exec, nil
}

func (r *SwapRouter) result(ctx context.Context, req SwapRequest, source string, exec *venue.Execution) *types.SwapResult {
	decimals := ResolveDecimals(ctx, r.tokens, req.ToToken)
	return &types.SwapResult{
		Success:       true,
		Source:        source,
		Venue:         exec.Venue,
		TxRef:         exec.TxRef,
		AmountOutBase: exec.OutAmount,
		AmountOut:     ToHuman(exec.OutAmount, decimals),
		PriceImpact:   exec.PriceImpact,
	}
}

func failed(terr *TradingError) (*types.SwapResult, error) {
	return &types.SwapResult{Success: false, Error: terr}, terr
}
