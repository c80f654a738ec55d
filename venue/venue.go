// Package venue wraps the swap venues the router can execute against.
//
// Each client is a stateless request/response wrapper around one venue's
// quote and swap endpoints. Failures are returned as *Error with a Kind the
// router inspects to decide on fallback and to build user-facing messages.
package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every venue HTTP call.
const DefaultTimeout = 5 * time.Second

// ErrorKind classifies a venue failure
type ErrorKind string

const (
	KindUnavailable ErrorKind = "VENUE_UNAVAILABLE" // network, non-2xx, malformed body
	KindNoRoute     ErrorKind = "NO_ROUTE"
	KindSlippage    ErrorKind = "SLIPPAGE_EXCEEDED"
)

// Error is a classified venue failure
type Error struct {
	Venue  string
	Op     string // "quote", "swap", "send", "price"
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Venue, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a venue error, or KindUnavailable for anything else.
func KindOf(err error) ErrorKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnavailable
}

// QuoteRequest asks a venue for a route. Amount is in base units of InputMint.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      decimal.Decimal
	SlippageBps int
}

// Quote is a venue's answer to a QuoteRequest
type Quote struct {
	Venue       string
	InputMint   string
	OutputMint  string
	InAmount    decimal.Decimal
	OutAmount   decimal.Decimal // base units of OutputMint
	PriceImpact decimal.Decimal
	SlippageBps int
	FetchedAt   time.Time

	// Raw is the venue's quote body, echoed back on swap
	Raw json.RawMessage
}

// Execution is the result of a submitted swap
type Execution struct {
	Venue       string
	TxRef       string
	OutAmount   decimal.Decimal
	PriceImpact decimal.Decimal
}

// Client is one swap venue
type Client interface {
	Name() string
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
	Execute(ctx context.Context, quote *Quote, wallet string) (*Execution, error)
}

// PriceSource is implemented by venues that expose a spot price endpoint.
type PriceSource interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// classifyMessage maps a venue error message onto a kind.
func classifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "slippage"):
		return KindSlippage
	case strings.Contains(m, "route"), strings.Contains(m, "liquidity"), strings.Contains(m, "no quote"):
		return KindNoRoute
	default:
		return KindUnavailable
	}
}
