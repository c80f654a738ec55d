package execution

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/solana"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func testWallet(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return solana.EncodeAddress(pub)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// fakeVenue counts calls and checks that Execute only ever sees its own quotes.
type fakeVenue struct {
	name     string
	quoteErr error
	execErr  error
	out      decimal.Decimal

	quotes   atomic.Int32
	executes atomic.Int32

	mu       sync.Mutex
	lastReq  venue.QuoteRequest
	foreign  bool
}

func newFakeVenue(name string, out string) *fakeVenue {
	return &fakeVenue{name: name, out: dec(out)}
}

func (f *fakeVenue) Name() string { return f.name }

func (f *fakeVenue) Quote(ctx context.Context, req venue.QuoteRequest) (*venue.Quote, error) {
	f.quotes.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &venue.Quote{
		Venue:       f.name,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    req.Amount,
		OutAmount:   f.out,
		SlippageBps: req.SlippageBps,
	}, nil
}

func (f *fakeVenue) Execute(ctx context.Context, q *venue.Quote, wallet string) (*venue.Execution, error) {
	f.executes.Add(1)
	if q.Venue != f.name {
		f.mu.Lock()
		f.foreign = true
		f.mu.Unlock()
		return nil, &venue.Error{Venue: f.name, Op: "swap", Kind: venue.KindUnavailable, Err: errors.New("foreign quote")}
	}
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &venue.Execution{
		Venue:     f.name,
		TxRef:     fmt.Sprintf("%s-tx-%d", f.name, f.executes.Load()),
		OutAmount: q.OutAmount,
	}, nil
}

func (f *fakeVenue) calls() int { return int(f.quotes.Load() + f.executes.Load()) }

func unavailable(name string) error {
	return &venue.Error{Venue: name, Op: "swap", Kind: venue.KindUnavailable, Status: 503, Err: errors.New("service unavailable")}
}

func noRoute(name string) error {
	return &venue.Error{Venue: name, Op: "quote", Kind: venue.KindNoRoute, Status: 400, Err: errors.New("no route found")}
}

func slippage(name string) error {
	return &venue.Error{Venue: name, Op: "send", Kind: venue.KindSlippage, Err: errors.New("slippage tolerance exceeded")}
}

type fakeTokens struct {
	decimals map[string]int
	err      error
}

func (f fakeTokens) GetTokenDecimals(_ context.Context, mint string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	d, ok := f.decimals[mint]
	if !ok {
		return 0, errors.New("unknown mint")
	}
	return d, nil
}

// scriptedSwapper is a Swapper for trade service tests.
type scriptedSwapper struct {
	mu    sync.Mutex
	calls []SwapRequest
	err   error
	// out returns the human AmountOut for a request
	out func(req SwapRequest) decimal.Decimal
}

func (s *scriptedSwapper) Swap(_ context.Context, req SwapRequest) (*types.SwapResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	n := len(s.calls)
	s.mu.Unlock()

	if s.err != nil {
		return &types.SwapResult{Success: false, Error: s.err}, s.err
	}
	return &types.SwapResult{
		Success:   true,
		Source:    types.SourcePrimary,
		Venue:     venue.BagsName,
		TxRef:     fmt.Sprintf("tx-%d", n),
		AmountOut: s.out(req),
	}, nil
}

func (s *scriptedSwapper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSwapper) last() SwapRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}
