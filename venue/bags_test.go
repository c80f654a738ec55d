package venue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBagsClient_QuoteAndExecute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		switch r.URL.Path {
		case "/trade/quote":
			assert.Equal(t, "manual", r.URL.Query().Get("slippageMode"))
			assert.Equal(t, "150", r.URL.Query().Get("slippageBps"))
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"response": map[string]any{
					"inAmount":       "1000000000",
					"outAmount":      "48000000",
					"priceImpactPct": "0.02",
					"routePlan":      []any{map[string]any{"venue": "meteora"}},
				},
			})
		case "/trade/swap":
			json.NewEncoder(w).Encode(map[string]any{
				"success":  true,
				"response": map[string]any{"swapTransaction": "base58tx"},
			})
		}
	}))
	defer server.Close()

	c := NewBagsClient(server.URL, PaperSigner{}, WithAPIKey("secret"))
	q, err := c.Quote(context.Background(), quoteReq())
	require.NoError(t, err)
	assert.Equal(t, BagsName, q.Venue)

	exec, err := c.Execute(context.Background(), q, testWallet)
	require.NoError(t, err)
	assert.Contains(t, exec.TxRef, "DRY_")
}

func TestBagsClient_UnsuccessfulEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Slippage tolerance exceeded"})
	}))
	defer server.Close()

	c := NewBagsClient(server.URL, PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	assert.Equal(t, KindSlippage, KindOf(err))
}

func TestBagsClient_NetworkDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewBagsClient(url, PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestClassifyMessage(t *testing.T) {
	assert.Equal(t, KindSlippage, classifyMessage("SLIPPAGE exceeded"))
	assert.Equal(t, KindNoRoute, classifyMessage("Could not find any route"))
	assert.Equal(t, KindNoRoute, classifyMessage("insufficient liquidity"))
	assert.Equal(t, KindUnavailable, classifyMessage("internal error"))
}
