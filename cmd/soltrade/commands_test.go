package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solAddress = "So11111111111111111111111111111111111111112"

func tokenServer(t *testing.T, trades *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/tokens/"+solAddress:
			w.Write([]byte(`{"address":"` + solAddress + `","symbol":"SOL","name":"Solana","decimals":9,"price":"91.22"}`))
		case r.URL.Path == "/api/v1/tokens" && r.Method == http.MethodGet:
			w.Write([]byte(`{"tokens":[{"address":"` + solAddress + `","symbol":"SOL","name":"Solana","decimals":9,"price":"91.22"}],"count":1}`))
		case len(r.URL.Path) > len("/api/v1/tokens/") && r.URL.Path[:len("/api/v1/tokens/")] == "/api/v1/tokens/":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid token address"}`))
		case r.URL.Path == "/api/v1/trades" && r.Method == http.MethodPost:
			trades.Add(1)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, solAddress, body["token_address"])
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"trade":{"id":"01J","direction":"` + body["direction"] + `","token_symbol":"SOL","amount":"` + body["amount"] + `","price":"91.22","total":"228.05","status":"completed","signature":"5xyz"}}`))
		case r.URL.Path == "/api/v1/trades":
			w.Write([]byte(`{"trades":[{"id":"b","token_symbol":"SOL","status":"failed","total":"10"},{"id":"a","token_symbol":"SOL","status":"completed","total":"228.05"}],"count":2,"total":2}`))
		case r.URL.Path == "/health":
			w.Write([]byte("OK"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTradeBuy_BySymbol(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	err := newApp().Run([]string{"soltrade", "--server", server.URL, "--json", "trade", "buy", "sol", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), trades.Load())
}

func TestTradeSell_InvalidAmountNeverSubmitted(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	for _, amount := range []string{"abc", "0", "1.2.3", "0.0000000001"} {
		err := newApp().Run([]string{"soltrade", "-s", server.URL, "trade", "sell", solAddress, amount})
		require.Error(t, err, amount)
		assert.Contains(t, err.Error(), "amount", amount)
	}
	assert.Equal(t, int32(0), trades.Load())
}

func TestTradeBuy_InvalidSlippage(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	err := newApp().Run([]string{"soltrade", "-s", server.URL, "trade", "buy", "--slippage", "3", solAddress, "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slippage")
	assert.Equal(t, int32(0), trades.Load())
}

func TestTradeBuy_UnknownSymbol(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	err := newApp().Run([]string{"soltrade", "-s", server.URL, "trade", "buy", "BONK", "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no token matches "BONK"`)
}

func TestHistory_Filters(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	err := newApp().Run([]string{"soltrade", "-s", server.URL, "-j", "history", "--status", "completed", "--jq", ".total | tonumber > 100"})
	require.NoError(t, err)

	err = newApp().Run([]string{"soltrade", "-s", server.URL, "history", "--jq", ".total =="})
	require.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	var trades atomic.Int32
	server := tokenServer(t, &trades)

	require.NoError(t, newApp().Run([]string{"soltrade", "-s", server.URL, "server", "health"}))

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	err := newApp().Run([]string{"soltrade", "-s", failing.URL, "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}
