// Package pricing implements the price and token-info collaborator consumed by
// the router and the monitor.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/solana"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

// ErrNoPrice is returned when no source knows the token.
var ErrNoPrice = errors.New("no price available")

// Provider answers spot price and decimals queries.
type Provider interface {
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, error)
	GetTokenDecimals(ctx context.Context, mint string) (int, error)
}

// Service combines a venue price endpoint with RPC mint lookups.
// Decimals never change for a mint, so they are cached for the process lifetime.
type Service struct {
	prices venue.PriceSource
	rpc    *RPCClient

	mu       sync.RWMutex
	decimals map[string]int
}

// NewService creates a pricing service.
func NewService(prices venue.PriceSource, rpc *RPCClient) *Service {
	return &Service{
		prices:   prices,
		rpc:      rpc,
		decimals: map[string]int{types.NativeMint: types.NativeDecimals},
	}
}

// GetPrice implements Provider.
func (s *Service) GetPrice(ctx context.Context, mint string) (decimal.Decimal, error) {
	if err := solana.ValidateMint(mint); err != nil {
		return decimal.Zero, err
	}
	if s.prices == nil {
		return decimal.Zero, ErrNoPrice
	}
	p, err := s.prices.Price(ctx, mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrNoPrice, err)
	}
	return p, nil
}

// GetTokenDecimals implements Provider.
func (s *Service) GetTokenDecimals(ctx context.Context, mint string) (int, error) {
	s.mu.RLock()
	d, ok := s.decimals[mint]
	s.mu.RUnlock()
	if ok {
		return d, nil
	}

	if err := solana.ValidateMint(mint); err != nil {
		return 0, err
	}
	if s.rpc == nil {
		return 0, errors.New("no rpc endpoint configured")
	}

	d, err := s.rpc.GetTokenDecimals(ctx, mint)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.decimals[mint] = d
	s.mu.Unlock()
	return d, nil
}

var _ Provider = (*Service)(nil)
