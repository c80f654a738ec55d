package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	BagsName       = "bags_fm"
	BagsDefaultURL = "https://public-api-v2.bags.fm/api/v1"
)

// BagsClient talks to the Bags trade API. Bags is the primary venue because
// fills through it carry partner fee attribution.
type BagsClient struct {
	httpBase
	signer Signer
}

// NewBagsClient creates a Bags venue client.
func NewBagsClient(baseURL string, signer Signer, opts ...ClientOption) *BagsClient {
	if baseURL == "" {
		baseURL = BagsDefaultURL
	}
	return &BagsClient{
		httpBase: newHTTPBase(BagsName, baseURL, "x-api-key", opts...),
		signer:   signer,
	}
}

// Name implements Client.
func (c *BagsClient) Name() string { return c.name }

// bagsEnvelope is the {success, response, error} wrapper on every Bags reply.
type bagsEnvelope struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

func (e *bagsEnvelope) unwrap(venueName, op string) (json.RawMessage, error) {
	if !e.Success {
		msg := e.Error
		if msg == "" {
			msg = "request unsuccessful"
		}
		return nil, &Error{Venue: venueName, Op: op, Kind: classifyMessage(msg), Err: errors.New(msg)}
	}
	if len(e.Response) == 0 || string(e.Response) == "null" {
		return nil, &Error{Venue: venueName, Op: op, Kind: KindUnavailable, Err: errors.New("empty response")}
	}
	return e.Response, nil
}

type bagsQuote struct {
	InAmount       decimal.Decimal   `json:"inAmount"`
	OutAmount      decimal.Decimal   `json:"outAmount"`
	PriceImpactPct decimal.Decimal   `json:"priceImpactPct"`
	RoutePlan      []json.RawMessage `json:"routePlan"`
}

// Quote implements Client.
func (c *BagsClient) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount.Truncate(0).String())
	q.Set("slippageMode", "manual")
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	var env bagsEnvelope
	if err := c.get(ctx, "quote", "/trade/quote?"+q.Encode(), &env); err != nil {
		return nil, err
	}
	raw, err := env.unwrap(c.name, "quote")
	if err != nil {
		return nil, err
	}

	var bq bagsQuote
	if err := json.Unmarshal(raw, &bq); err != nil {
		return nil, &Error{Venue: c.name, Op: "quote", Kind: KindUnavailable, Err: err}
	}
	if len(bq.RoutePlan) == 0 || !bq.OutAmount.IsPositive() {
		return nil, &Error{Venue: c.name, Op: "quote", Kind: KindNoRoute, Err: errors.New("empty route")}
	}

	return &Quote{
		Venue:       c.name,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    bq.InAmount,
		OutAmount:   bq.OutAmount,
		PriceImpact: bq.PriceImpactPct,
		SlippageBps: req.SlippageBps,
		FetchedAt:   time.Now(),
		Raw:         raw,
	}, nil
}

type bagsSwapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
}

type bagsSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// Execute implements Client.
func (c *BagsClient) Execute(ctx context.Context, quote *Quote, wallet string) (*Execution, error) {
	if quote == nil || quote.Venue != c.name {
		return nil, &Error{Venue: c.name, Op: "swap", Kind: KindUnavailable, Err: errors.New("quote not issued by this venue")}
	}

	var env bagsEnvelope
	if err := c.post(ctx, "swap", "/trade/swap", bagsSwapRequest{
		QuoteResponse: quote.Raw,
		UserPublicKey: wallet,
	}, &env); err != nil {
		return nil, err
	}
	raw, err := env.unwrap(c.name, "swap")
	if err != nil {
		return nil, err
	}

	var sr bagsSwapResponse
	if err := json.Unmarshal(raw, &sr); err != nil || sr.SwapTransaction == "" {
		return nil, &Error{Venue: c.name, Op: "swap", Kind: KindUnavailable, Err: errors.New("missing swapTransaction")}
	}

	ref, err := send(ctx, c.name, c.signer, sr.SwapTransaction, wallet)
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

var _ Client = (*BagsClient)(nil)
