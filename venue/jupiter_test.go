package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMint   = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	solMint    = "So11111111111111111111111111111111111111112"
)

func jupiterServer(t *testing.T, quoteStatus int, quoteBody any, swapBody any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/quote":
			assert.Equal(t, "150", r.URL.Query().Get("slippageBps"))
			assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
			w.WriteHeader(quoteStatus)
			json.NewEncoder(w).Encode(quoteBody)
		case "/swap":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, testWallet, req["userPublicKey"])
			assert.NotNil(t, req["quoteResponse"])
			json.NewEncoder(w).Encode(swapBody)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func okQuote() map[string]any {
	return map[string]any{
		"inputMint":      solMint,
		"outputMint":     testMint,
		"inAmount":       "1000000000",
		"outAmount":      "52000000",
		"priceImpactPct": "0.012",
		"routePlan":      []any{map[string]any{"percent": 100}},
	}
}

func quoteReq() QuoteRequest {
	return QuoteRequest{
		InputMint:   solMint,
		OutputMint:  testMint,
		Amount:      decimal.NewFromInt(1_000_000_000),
		SlippageBps: 150,
	}
}

func TestJupiterClient_QuoteAndExecute(t *testing.T) {
	server := jupiterServer(t, http.StatusOK, okQuote(), map[string]any{"swapTransaction": "AQAB"})
	defer server.Close()

	var sentPayload string
	signer := SignerFunc(func(_ context.Context, payload, wallet string) (string, error) {
		sentPayload = payload
		return "sig123", nil
	})

	c := NewJupiterClient(server.URL, "", signer)
	q, err := c.Quote(context.Background(), quoteReq())
	require.NoError(t, err)
	assert.Equal(t, JupiterName, q.Venue)
	assert.True(t, q.OutAmount.Equal(decimal.NewFromInt(52_000_000)))
	assert.Equal(t, 150, q.SlippageBps)

	exec, err := c.Execute(context.Background(), q, testWallet)
	require.NoError(t, err)
	assert.Equal(t, "sig123", exec.TxRef)
	assert.Equal(t, "AQAB", sentPayload)
	assert.True(t, exec.OutAmount.Equal(q.OutAmount))
}

func TestJupiterClient_NoRoute(t *testing.T) {
	server := jupiterServer(t, http.StatusBadRequest,
		map[string]any{"error": "Could not find any route", "errorCode": "COULD_NOT_FIND_ANY_ROUTE"}, nil)
	defer server.Close()

	c := NewJupiterClient(server.URL, "", PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	require.Error(t, err)

	var ve *Error
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, KindNoRoute, ve.Kind)
	assert.Equal(t, http.StatusBadRequest, ve.Status)
}

func TestJupiterClient_EmptyRoutePlan(t *testing.T) {
	body := okQuote()
	body["routePlan"] = []any{}
	server := jupiterServer(t, http.StatusOK, body, nil)
	defer server.Close()

	c := NewJupiterClient(server.URL, "", PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	assert.Equal(t, KindNoRoute, KindOf(err))
}

func TestJupiterClient_ServerError(t *testing.T) {
	server := jupiterServer(t, http.StatusBadGateway, map[string]any{"message": "upstream down"}, nil)
	defer server.Close()

	c := NewJupiterClient(server.URL, "", PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestJupiterClient_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL, "", PaperSigner{})
	_, err := c.Quote(context.Background(), quoteReq())
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestJupiterClient_SignerSlippage(t *testing.T) {
	server := jupiterServer(t, http.StatusOK, okQuote(), map[string]any{"swapTransaction": "AQAB"})
	defer server.Close()

	signer := SignerFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("custom program error: SlippageToleranceExceeded")
	})
	c := NewJupiterClient(server.URL, "", signer)
	q, err := c.Quote(context.Background(), quoteReq())
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), q, testWallet)
	assert.Equal(t, KindSlippage, KindOf(err))
}

func TestJupiterClient_RejectsForeignQuote(t *testing.T) {
	c := NewJupiterClient("http://127.0.0.1:1", "", PaperSigner{})
	_, err := c.Execute(context.Background(), &Quote{Venue: BagsName}, testWallet)
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestJupiterClient_HonorsDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewJupiterClient(server.URL, "", PaperSigner{}, WithTimeout(5*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Quote(ctx, quoteReq())
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestJupiterClient_Price(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{testMint: map[string]any{"id": testMint, "price": "0.0000231"}},
		})
	}))
	defer server.Close()

	c := NewJupiterClient("", server.URL, PaperSigner{})
	price, err := c.Price(context.Background(), testMint)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("0.0000231")))

	_, err = c.Price(context.Background(), solMint)
	assert.Equal(t, KindNoRoute, KindOf(err))
}
