// Package solana holds the small amount of chain knowledge the router needs:
// address validation and the native mint.
package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of a Solana public key.
const PublicKeyLength = 32

var (
	ErrInvalidAddress = errors.New("invalid solana address")
	ErrOffCurve       = errors.New("address is not on the ed25519 curve")
)

// DecodeAddress decodes a base58 address into its 32 raw bytes.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidAddress, len(raw))
	}
	return raw, nil
}

// ValidateMint checks a token mint address. Mints may be program derived, so
// only the encoding is checked.
func ValidateMint(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// ValidateWallet checks a wallet address. Wallets are signer keys and must be
// valid ed25519 points.
func ValidateWallet(addr string) error {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if !IsOnCurve(raw) {
		return ErrOffCurve
	}
	return nil
}

// IsOnCurve reports whether raw is a canonical ed25519 point encoding.
func IsOnCurve(raw []byte) bool {
	if len(raw) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// EncodeAddress encodes raw key bytes as base58.
func EncodeAddress(raw []byte) string {
	return base58.Encode(raw)
}
