package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Signer signs a venue swap payload with the wallet key and submits it,
// returning the transaction reference. Custody lives outside this module.
type Signer interface {
	SignAndSend(ctx context.Context, payload, wallet string) (string, error)
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(ctx context.Context, payload, wallet string) (string, error)

// SignAndSend implements Signer.
func (f SignerFunc) SignAndSend(ctx context.Context, payload, wallet string) (string, error) {
	return f(ctx, payload, wallet)
}

// PaperSigner never touches the chain; it mints a synthetic tx ref.
type PaperSigner struct{}

// SignAndSend implements Signer for dry runs.
func (PaperSigner) SignAndSend(_ context.Context, payload, wallet string) (string, error) {
	ref := fmt.Sprintf("DRY_%d", time.Now().UnixNano())
	log.Info().
		Str("tx_ref", ref).
		Str("wallet", wallet).
		Int("payload_bytes", len(payload)).
		Msg("📝 DRY RUN: swap would be sent")
	return ref, nil
}

// send runs the signer and classifies its failure.
func send(ctx context.Context, venueName string, signer Signer, payload, wallet string) (string, error) {
	if signer == nil {
		return "", &Error{Venue: venueName, Op: "send", Kind: KindUnavailable, Err: fmt.Errorf("no signer configured")}
	}
	ref, err := signer.SignAndSend(ctx, payload, wallet)
	if err != nil {
		return "", &Error{Venue: venueName, Op: "send", Kind: classifyMessage(err.Error()), Err: err}
	}
	if ref == "" {
		return "", &Error{Venue: venueName, Op: "send", Kind: KindUnavailable, Err: fmt.Errorf("signer returned empty tx ref")}
	}
	return ref, nil
}

// RemoteSigner posts the unsigned swap payload to an external signing service
// that holds the wallet key and broadcasts the transaction.
type RemoteSigner struct {
	httpBase
}

// NewRemoteSigner creates a signer for the service at url.
func NewRemoteSigner(url string, opts ...ClientOption) *RemoteSigner {
	return &RemoteSigner{httpBase: newHTTPBase("signer", url, "Authorization", opts...)}
}

type signRequest struct {
	Transaction string `json:"transaction"`
	Wallet      string `json:"wallet"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// SignAndSend implements Signer.
func (s *RemoteSigner) SignAndSend(ctx context.Context, payload, wallet string) (string, error) {
	var resp signResponse
	if err := s.post(ctx, "send", "/sign-and-send", signRequest{Transaction: payload, Wallet: wallet}, &resp); err != nil {
		return "", err
	}
	return resp.Signature, nil
}
