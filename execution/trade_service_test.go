package execution

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// fixedRate swaps at 1 token = 0.001 SOL on entry and at exitPrice on exit.
func fixedRate(exitPrice string) func(req SwapRequest) decimal.Decimal {
	return func(req SwapRequest) decimal.Decimal {
		if req.FromToken == types.NativeMint {
			sol := ToHuman(req.Amount, types.NativeDecimals)
			return sol.Div(dec("0.001"))
		}
		tokens := ToHuman(req.Amount, 6)
		return tokens.Mul(dec(exitPrice))
	}
}

type harness struct {
	swapper *scriptedSwapper
	store   *positions.Store
	memory  *memory.TradeMemory
	kill    *risk.KillSwitch
	svc     *TradeService
}

func newHarness(t *testing.T, exitPrice string) *harness {
	h := &harness{
		swapper: &scriptedSwapper{out: fixedRate(exitPrice)},
		store:   positions.NewStore(nil),
		memory:  memory.New(),
		kill:    risk.NewKillSwitch(2, 0),
	}
	h.svc = NewTradeService(h.swapper, h.store, fakeTokens{decimals: map[string]int{testMint: 6}}, TradeConfig{
		WalletAddress: testWallet(t),
		SlippageBps:   100,
		AllowFallback: true,
	}, WithRecorder(h.memory), WithCloseObserver(h.kill))
	return h
}

func validBuy() BuyRequest {
	return BuyRequest{
		TokenAddress:   testMint,
		TokenSymbol:    "BONK",
		AmountSol:      dec("0.5"),
		TPPercent:      dec("50"),
		SLPercent:      dec("20"),
		SignalType:     "BUY",
		MarketRegime:   "bull",
		SentimentScore: 0.8,
	}
}

func TestBuy_RejectsInvalidThresholdsBeforeSwap(t *testing.T) {
	h := newHarness(t, "0.001")

	cases := map[string][2]string{
		"sl 100":    {"50", "100"},
		"sl > 100":  {"50", "120"},
		"tp < 5":    {"4", "10"},
		"tp > 300":  {"301", "10"},
		"missing":   {"0", "0"},
		"negative":  {"50", "-1"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			req := validBuy()
			req.TPPercent, req.SLPercent = dec(c[0]), dec(c[1])
			_, _, err := h.svc.Buy(context.Background(), req)
			assert.Equal(t, CodeInvalidRequest, CodeOf(err))
			assert.ErrorIs(t, err, risk.ErrInvalidThreshold)
		})
	}
	assert.Equal(t, 0, h.swapper.count())
}

func TestBuy_ZeroOutputIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	h := newHarness(t, "0.001")
	h.swapper.out = func(SwapRequest) decimal.Decimal { return decimal.Zero }

	pos, res, err := h.svc.Buy(context.Background(), validBuy())
	assert.Nil(t, pos)
	require.NotNil(t, res)
	assert.Equal(t, CodeNoRouteFound, CodeOf(err))
	assert.Equal(t, 0, h.store.OpenCount())

	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), res.TxRef)
}

func TestBuy_BoundaryAccepted(t *testing.T) {
	h := newHarness(t, "0.001")
	req := validBuy()
	req.TPPercent, req.SLPercent = dec("100"), dec("99")

	pos, _, err := h.svc.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, pos.TPPrice.Equal(dec("0.002")))
	assert.True(t, pos.SLPrice.Equal(dec("0.00001")))
}

func TestBuy_OpensPosition(t *testing.T) {
	h := newHarness(t, "0.001")
	req := validBuy()
	req.TrailPercent = dec("10")

	pos, res, err := h.svc.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)

	swap := h.swapper.last()
	assert.Equal(t, types.NativeMint, swap.FromToken)
	assert.True(t, swap.Amount.Equal(dec("500000000")))
	assert.True(t, swap.AllowFallback)

	assert.True(t, pos.Amount.Equal(dec("500")))
	assert.True(t, pos.EntryPrice.Equal(dec("0.001")))
	assert.True(t, pos.TPPrice.Equal(dec("0.0015")))
	assert.True(t, pos.SLPrice.Equal(dec("0.0008")))
	assert.Equal(t, "tx-1", pos.TxRef)
	assert.Equal(t, types.SourcePrimary, pos.Source)
	assert.Equal(t, "BUY", pos.SignalType)

	_, ts, err := h.store.Get(pos.ID)
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, ts.CurrentStopPrice.Equal(dec("0.0009")))
}

func TestBuy_SwapFailureOpensNothing(t *testing.T) {
	h := newHarness(t, "0.001")
	h.swapper.err = &TradingError{Code: CodeBothVenuesFailed, Reason: CodeVenueUnavailable}

	_, res, err := h.svc.Buy(context.Background(), validBuy())
	assert.Equal(t, CodeBothVenuesFailed, CodeOf(err))
	assert.False(t, res.Success)
	assert.Empty(t, h.store.ListOpen())
}

func TestBuy_DisableFallback(t *testing.T) {
	h := newHarness(t, "0.001")
	req := validBuy()
	req.DisableFallback = true
	_, _, err := h.svc.Buy(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, h.swapper.last().AllowFallback)
}

func TestSell_FullClosesAndRecords(t *testing.T) {
	h := newHarness(t, "0.0015")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	res, err := h.svc.Sell(context.Background(), pos.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	swap := h.swapper.last()
	assert.Equal(t, testMint, swap.FromToken)
	assert.Equal(t, types.NativeMint, swap.ToToken)
	assert.True(t, swap.Amount.Equal(dec("500000000")))
	assert.True(t, swap.AllowFallback, "exits always allow fallback")

	closed, _, err := h.store.Get(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PositionClosed, closed.Status)
	assert.Equal(t, "tx-2", closed.ExitTxRef)
	assert.Equal(t, types.SourcePrimary, closed.ExitSource)
	assert.True(t, closed.ExitPrice.Equal(dec("0.0015")))
	assert.Equal(t, "MANUAL", closed.ExitReason)

	latest, ok := h.memory.Latest()
	require.True(t, ok)
	assert.Equal(t, pos.ID, latest.PositionID)
	assert.InDelta(t, 50, latest.PnLPercent, 1e-9)
	assert.Equal(t, types.OutcomeWin, latest.Outcome)

	_, err = h.svc.Sell(context.Background(), pos.ID, dec("100"))
	assert.ErrorIs(t, err, positions.ErrAlreadyClosed)
	assert.Equal(t, 2, h.swapper.count())
}

func TestSell_Partial(t *testing.T) {
	h := newHarness(t, "0.001")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	_, err = h.svc.Sell(context.Background(), pos.ID, dec("25"))
	require.NoError(t, err)

	after, _, err := h.store.Get(pos.ID)
	require.NoError(t, err)
	assert.True(t, after.IsOpen())
	assert.True(t, after.Amount.Equal(dec("375")))
	assert.True(t, after.AmountBase.Equal(dec("0.375")))
	assert.True(t, h.swapper.last().Amount.Equal(dec("125000000")))
	assert.Equal(t, 0, h.memory.Stats().TotalTrades)
}

func TestSell_Validation(t *testing.T) {
	h := newHarness(t, "0.001")
	for _, p := range []string{"0", "-1", "100.5"} {
		_, err := h.svc.Sell(context.Background(), "x", dec(p))
		assert.Equal(t, CodeInvalidRequest, CodeOf(err), p)
	}
	_, err := h.svc.Sell(context.Background(), "missing", dec("100"))
	assert.ErrorIs(t, err, positions.ErrNotFound)
}

func TestSell_LossesTripKillSwitch(t *testing.T) {
	h := newHarness(t, "0.0005")
	for i := 0; i < 2; i++ {
		pos, _, err := h.svc.Buy(context.Background(), validBuy())
		require.NoError(t, err)
		_, err = h.svc.Sell(context.Background(), pos.ID, dec("100"))
		require.NoError(t, err)
	}
	assert.True(t, h.kill.IsTripped())
}

func TestSell_ConcurrentExitAndManualSellSwapOnce(t *testing.T) {
	h := newHarness(t, "0.002")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.Sell(context.Background(), pos.ID, dec("100"))
		}(i)
	}
	wg.Wait()

	var ok, closed int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, positions.ErrAlreadyClosed):
			closed++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 2, h.swapper.count(), "one buy plus exactly one sell")
	assert.Equal(t, 1, h.memory.Stats().TotalTrades)
}
