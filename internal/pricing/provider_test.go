package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type fakePrices struct {
	price decimal.Decimal
	err   error
}

func (f fakePrices) Price(context.Context, string) (decimal.Decimal, error) {
	return f.price, f.err
}

func rpcServer(t *testing.T, calls *atomic.Int32, decimals int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenSupply", req.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]any{
				"context": map[string]any{"slot": 1},
				"value":   map[string]any{"amount": "1000", "decimals": decimals, "uiAmount": 0.001},
			},
		})
	}))
}

func TestService_GetTokenDecimals_Cached(t *testing.T) {
	var calls atomic.Int32
	server := rpcServer(t, &calls, 5)
	defer server.Close()

	s := NewService(nil, NewRPCClient(server.URL, 0))
	for i := 0; i < 3; i++ {
		d, err := s.GetTokenDecimals(context.Background(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 5, d)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestService_GetTokenDecimals_NativeWithoutRPC(t *testing.T) {
	s := NewService(nil, nil)
	d, err := s.GetTokenDecimals(context.Background(), types.NativeMint)
	require.NoError(t, err)
	assert.Equal(t, types.NativeDecimals, d)
}

func TestService_GetTokenDecimals_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": -32602, "message": "Invalid param: not a Token mint"},
		})
	}))
	defer server.Close()

	s := NewService(nil, NewRPCClient(server.URL, 0))
	_, err := s.GetTokenDecimals(context.Background(), testMint)
	require.Error(t, err)
	var rerr *rpcError
	assert.True(t, errors.As(err, &rerr))
}

func TestService_GetPrice(t *testing.T) {
	s := NewService(fakePrices{price: decimal.NewFromFloat(1.25)}, nil)
	p, err := s.GetPrice(context.Background(), testMint)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.NewFromFloat(1.25)))

	s = NewService(fakePrices{err: errors.New("down")}, nil)
	_, err = s.GetPrice(context.Background(), testMint)
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = s.GetPrice(context.Background(), "not-a-mint")
	assert.Error(t, err)
}
