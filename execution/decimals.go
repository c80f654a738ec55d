package execution

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// FallbackDecimals is used when token metadata cannot be read. Six is the
// common SPL default and under-reports rather than inflates 9-decimal tokens.
const FallbackDecimals = 6

// TokenInfo resolves mint decimals.
type TokenInfo interface {
	GetTokenDecimals(ctx context.Context, mint string) (int, error)
}

// ResolveDecimals returns the decimals for mint. The native mint is fixed at 9
// and lookup failures fall back to FallbackDecimals.
func ResolveDecimals(ctx context.Context, info TokenInfo, mint string) int {
	if mint == types.NativeMint {
		return types.NativeDecimals
	}
	if info == nil {
		return FallbackDecimals
	}
	d, err := info.GetTokenDecimals(ctx, mint)
	if err != nil || d < 0 {
		log.Warn().Err(err).Str("mint", mint).Int("fallback", FallbackDecimals).Msg("⚠️ Decimals lookup failed")
		return FallbackDecimals
	}
	return d
}

// ToHuman converts base units to human units.
func ToHuman(base decimal.Decimal, decimals int) decimal.Decimal {
	return base.Shift(-int32(decimals))
}

// ToBase converts human units to whole base units, rounding down.
func ToBase(human decimal.Decimal, decimals int) decimal.Decimal {
	return human.Shift(int32(decimals)).Floor()
}
