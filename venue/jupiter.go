package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const (
	JupiterName       = "jupiter"
	JupiterDefaultURL = "https://lite-api.jup.ag/swap/v1"
	JupiterPriceURL   = "https://lite-api.jup.ag/price/v2"
)

// JupiterClient talks to the Jupiter aggregator swap API.
type JupiterClient struct {
	httpBase
	priceURL string
	signer   Signer
}

// NewJupiterClient creates a Jupiter venue client.
func NewJupiterClient(baseURL, priceURL string, signer Signer, opts ...ClientOption) *JupiterClient {
	if baseURL == "" {
		baseURL = JupiterDefaultURL
	}
	if priceURL == "" {
		priceURL = JupiterPriceURL
	}
	return &JupiterClient{
		httpBase: newHTTPBase(JupiterName, baseURL, "x-api-key", opts...),
		priceURL: priceURL,
		signer:   signer,
	}
}

// Name implements Client.
func (c *JupiterClient) Name() string { return c.name }

type jupiterQuote struct {
	InputMint      string            `json:"inputMint"`
	OutputMint     string            `json:"outputMint"`
	InAmount       decimal.Decimal   `json:"inAmount"`
	OutAmount      decimal.Decimal   `json:"outAmount"`
	PriceImpactPct decimal.Decimal   `json:"priceImpactPct"`
	RoutePlan      []json.RawMessage `json:"routePlan"`
}

// Quote implements Client.
func (c *JupiterClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount.Truncate(0).String())
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	var raw json.RawMessage
	if err := c.get(ctx, "quote", "/quote?"+q.Encode(), &raw); err != nil {
		return nil, err
	}

	var jq jupiterQuote
	if err := json.Unmarshal(raw, &jq); err != nil {
		return nil, &Error{Venue: c.name, Op: "quote", Kind: KindUnavailable, Err: fmt.Errorf("malformed quote: %w", err)}
	}
	if len(jq.RoutePlan) == 0 || !jq.OutAmount.IsPositive() {
		return nil, &Error{Venue: c.name, Op: "quote", Kind: KindNoRoute, Err: errors.New("empty route")}
	}

	return &Quote{
		Venue:       c.name,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    jq.InAmount,
		OutAmount:   jq.OutAmount,
		PriceImpact: jq.PriceImpactPct,
		SlippageBps: req.SlippageBps,
		FetchedAt:   time.Now(),
		Raw:         raw,
	}, nil
}

type jupiterSwapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type jupiterSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// Execute implements Client.
func (c *JupiterClient) Execute(ctx context.Context, quote *Quote, wallet string) (*Execution, error) {
	if quote == nil || quote.Venue != c.name {
		return nil, &Error{Venue: c.name, Op: "swap", Kind: KindUnavailable, Err: errors.New("quote not issued by this venue")}
	}

	var resp jupiterSwapResponse
	err := c.post(ctx, "swap", "/swap", jupiterSwapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    wallet,
		WrapAndUnwrapSol: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &Error{Venue: c.name, Op: "swap", Kind: classifyMessage(resp.Error), Err: errors.New(resp.Error)}
	}
	if resp.SwapTransaction == "" {
		return nil, &Error{Venue: c.name, Op: "swap", Kind: KindUnavailable, Err: errors.New("missing swapTransaction")}
	}

	ref, err := send(ctx, c.name, c.signer, resp.SwapTransaction, wallet)
	if err != nil {
		return nil, err
	}

	return &Execution{
		Venue:       c.name,
		TxRef:       ref,
		OutAmount:   quote.OutAmount,
		PriceImpact: quote.PriceImpact,
	}, nil
}

type jupiterPriceResponse struct {
	Data map[string]*struct {
		Price decimal.Decimal `json:"price"`
	} `json:"data"`
}

// Price implements PriceSource using the Jupiter price endpoint. Prices are
// quoted in the native mint so they compare directly with entry prices.
func (c *JupiterClient) Price(ctx context.Context, mint string) (decimal.Decimal, error) {
	pb := c.httpBase
	pb.baseURL = c.priceURL

	var resp jupiterPriceResponse
	if err := pb.get(ctx, "price", "?ids="+url.QueryEscape(mint)+"&vsToken="+types.NativeMint, &resp); err != nil {
		return decimal.Zero, err
	}
	entry := resp.Data[mint]
	if entry == nil || !entry.Price.IsPositive() {
		return decimal.Zero, &Error{Venue: c.name, Op: "price", Kind: KindNoRoute, Err: fmt.Errorf("no price for %s", mint)}
	}
	return entry.Price, nil
}

var (
	_ Client      = (*JupiterClient)(nil)
	_ PriceSource = (*JupiterClient)(nil)
)
