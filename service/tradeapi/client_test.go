package tradeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphQLServer answers every request with handler's result.
func graphQLServer(t *testing.T, handler func(req graphQLRequest) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildTransaction(t *testing.T) {
	var got graphQLRequest
	srv := graphQLServer(t, func(req graphQLRequest) (int, any) {
		got = req
		return http.StatusOK, map[string]any{"data": map[string]any{"trade": "AQID"}}
	})

	client := NewClient(srv.URL, nil, nil, nil)
	payload, err := client.BuildTransaction(context.Background(), TradeRequest{
		Action:        ActionBuy,
		TokenAddress:  "So11111111111111111111111111111111111111112",
		WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
		Slippage:      decimal.RequireFromString("1"),
		Amount:        2_500_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "AQID", payload)

	assert.Contains(t, got.Query, "trade(")
	assert.Equal(t, "BUY", got.Variables["type"])
	assert.Equal(t, "So11111111111111111111111111111111111111112", got.Variables["address"])
	assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", got.Variables["publicKey"])
	assert.Equal(t, float64(1), got.Variables["slippage"])
	assert.Equal(t, "2500000000", got.Variables["amount"])
}

func TestBuildTransaction_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr string
	}{
		{"graphql error", http.StatusOK, map[string]any{"errors": []map[string]any{{"message": "no route found"}}}, "no route found"},
		{"http error", http.StatusBadGateway, map[string]any{"error": "upstream"}, "HTTP 502"},
		{"empty payload", http.StatusOK, map[string]any{"data": map[string]any{"trade": ""}}, "no transaction"},
		{"null data", http.StatusOK, map[string]any{"data": nil}, "no data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := graphQLServer(t, func(req graphQLRequest) (int, any) {
				return tt.status, tt.body
			})
			client := NewClient(srv.URL, nil, nil, nil)
			_, err := client.BuildTransaction(context.Background(), TradeRequest{Action: ActionSell, Amount: 1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestListTokens(t *testing.T) {
	srv := graphQLServer(t, func(req graphQLRequest) (int, any) {
		assert.Contains(t, req.Query, "tokens")
		return http.StatusOK, map[string]any{"data": map[string]any{"tokens": []map[string]any{
			{"address": "So11111111111111111111111111111111111111112", "symbol": "SOL", "name": "Solana", "decimals": 9, "price": 93.42, "v24hChangePercent": 2.5},
			{"address": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "symbol": "BONK", "name": "Bonk", "decimals": 5, "price": 0.000024},
		}}}
	})

	client := NewClient(srv.URL, nil, nil, nil)
	tokens, err := client.ListTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "SOL", tokens[0].Symbol)
	assert.Equal(t, uint8(9), tokens[0].Decimals)
	assert.True(t, tokens[0].Price.Equal(decimal.RequireFromString("93.42")))
	assert.Equal(t, 2.5, tokens[0].PriceChange24h)
	assert.True(t, tokens[1].Price.Equal(decimal.RequireFromString("0.000024")))
}

func TestGetToken(t *testing.T) {
	srv := graphQLServer(t, func(req graphQLRequest) (int, any) {
		if req.Variables["address"] == "missing" {
			return http.StatusOK, map[string]any{"data": map[string]any{"token": nil}}
		}
		return http.StatusOK, map[string]any{"data": map[string]any{"token": map[string]any{
			"address": req.Variables["address"], "symbol": "RAY", "decimals": 6, "price": 0.385,
		}}}
	})

	client := NewClient(srv.URL, nil, nil, nil)
	token, err := client.GetToken(context.Background(), "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R")
	require.NoError(t, err)
	assert.Equal(t, "RAY", token.Symbol)

	_, err = client.GetToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
