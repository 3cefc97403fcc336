package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/pipeline"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/brojonat/soltrade/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solAddress = "So11111111111111111111111111111111111111112"

// fakeExecutor records intents and appends the record a real pipeline would.
type fakeExecutor struct {
	ledger *ledger.Ledger
	err    error

	mu      sync.Mutex
	intents []*trade.Intent
}

func (f *fakeExecutor) Execute(ctx context.Context, intent *trade.Intent, signer pipeline.Signer) (*ledger.Record, error) {
	f.mu.Lock()
	f.intents = append(f.intents, intent)
	f.mu.Unlock()

	rec := ledger.NewRecord(intent, signer.State().Address.String(), time.Now())
	if f.err != nil {
		rec.Status = ledger.StatusFailed
		rec.Reason = pipeline.Reason(f.err)
	} else {
		rec.Status = ledger.StatusCompleted
		rec.Signature = "sig-" + rec.ID
	}
	stored, _ := f.ledger.Append(rec)
	return &stored, f.err
}

type testServer struct {
	handler  http.Handler
	executor *fakeExecutor
	ledger   *ledger.Ledger
	session  *wallet.Session
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()

	source, err := catalog.NewStatic([]catalog.Token{
		{Address: solAddress, Symbol: "SOL", Name: "Solana", Decimals: 9, Price: decimal.RequireFromString("91.22")},
		{Address: "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", Symbol: "RAY", Name: "Raydium", Decimals: 6, Price: decimal.RequireFromString("0.385")},
	})
	require.NoError(t, err)

	key, err := solanago.NewRandomPrivateKey()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	trades := ledger.New(nil)
	session := wallet.NewSession(ctx, wallet.NewKeypairProvider(key, nil), nil, logger)
	executor := &fakeExecutor{ledger: trades}

	srv := New(":0", catalog.New(source, logger), session, nil, executor, trades, nil, nil, logger)
	return &testServer{
		handler:  srv.Handler(),
		executor: executor,
		ledger:   trades,
		session:  session,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestListTokens(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/tokens", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = ts.do(t, http.MethodGet, "/api/v1/tokens?q=ray", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	tokens := body["tokens"].([]interface{})
	assert.Equal(t, "RAY", tokens[0].(map[string]interface{})["symbol"])
}

func TestGetToken(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		address        string
		expectedStatus int
	}{
		{"known token", solAddress, http.StatusOK},
		{"unknown token", "MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac", http.StatusNotFound},
		{"not base58", "not-an-address", http.StatusBadRequest},
		{"wrong length", "abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/api/v1/tokens/"+tt.address, "")
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.expectedStatus != http.StatusOK {
				assert.NotEmpty(t, decode(t, w)["error"])
			}
		})
	}
}

func TestCreateTrade_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name          string
		body          string
		expectedField string
	}{
		{
			name:          "invalid token address",
			body:          `{"token_address":"nope","direction":"buy","amount":"1"}`,
			expectedField: "token",
		},
		{
			name:          "invalid direction",
			body:          `{"token_address":"` + solAddress + `","direction":"hold","amount":"1"}`,
			expectedField: "direction",
		},
		{
			name:          "non numeric amount",
			body:          `{"token_address":"` + solAddress + `","direction":"buy","amount":"abc"}`,
			expectedField: "amount",
		},
		{
			name:          "zero amount",
			body:          `{"token_address":"` + solAddress + `","direction":"buy","amount":"0"}`,
			expectedField: "amount",
		},
		{
			name:          "unsupported slippage",
			body:          `{"token_address":"` + solAddress + `","direction":"buy","amount":"1","slippage":"5"}`,
			expectedField: "slippage",
		},
		{
			name:          "negative stop price",
			body:          `{"token_address":"` + solAddress + `","direction":"sell","amount":"1","stop_price":"-2"}`,
			expectedField: "stop_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/trades", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.expectedField, decode(t, w)["field"])
		})
	}

	assert.Empty(t, ts.executor.intents, "invalid input must never reach the pipeline")
	assert.Equal(t, 0, ts.ledger.Len())
}

func TestCreateTrade_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/trades", `{"token_address":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "invalid request body")

	w = ts.do(t, http.MethodPost, "/api/v1/trades", `{"amount":"`+strings.Repeat("1", 2<<20)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "request body too large")
}

func TestCreateTrade_UnknownToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/trades",
		`{"token_address":"MangoCzJ36AjZyKwVj3VnYU4GTonjfVEnJmvvWaxLac","direction":"buy","amount":"1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTrade_Success(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/trades",
		`{"token_address":"`+solAddress+`","direction":"buy","amount":"2.5"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.Len(t, ts.executor.intents, 1)
	intent := ts.executor.intents[0]
	assert.Equal(t, trade.Buy, intent.Direction)
	assert.True(t, decimal.RequireFromString("2.5").Equal(intent.Amount))
	assert.Equal(t, uint16(100), intent.SlippageBps, "default slippage is 1%")
	assert.Nil(t, intent.StopPrice)

	rec := decode(t, w)["trade"].(map[string]interface{})
	assert.Equal(t, "completed", rec["status"])
	assert.Equal(t, "228.05", rec["total"])
}

func TestCreateTrade_PipelineFailures(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedReason string
	}{
		{"no wallet session", pipeline.ErrNoWalletSession, http.StatusConflict, "no_wallet_session"},
		{"signing rejected", pipeline.ErrSigningRejected, http.StatusBadGateway, "signing_rejected"},
		{"confirmation timeout", pipeline.ErrConfirmationTimeout, http.StatusBadGateway, "confirmation_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.executor.err = tt.err

			w := ts.do(t, http.MethodPost, "/api/v1/trades",
				`{"token_address":"`+solAddress+`","direction":"sell","amount":"1","slippage":"0.5"}`)
			require.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			body := decode(t, w)
			assert.Equal(t, tt.expectedReason, body["reason"])
			assert.Equal(t, pipeline.UserMessage(tt.err), body["error"])
			rec := body["trade"].(map[string]interface{})
			assert.Equal(t, "failed", rec["status"])
			assert.Equal(t, 1, ts.ledger.Len())
		})
	}
}

func TestListTrades(t *testing.T) {
	ts := newTestServer(t)
	for _, amount := range []string{"1", "2", "3"} {
		w := ts.do(t, http.MethodPost, "/api/v1/trades",
			`{"token_address":"`+solAddress+`","direction":"buy","amount":"`+amount+`"}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/trades?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 2, body["count"])
	assert.EqualValues(t, 3, body["total"])
	trades := body["trades"].([]interface{})
	assert.Equal(t, "3", trades[0].(map[string]interface{})["amount"], "newest first")

	w = ts.do(t, http.MethodGet, "/api/v1/trades?limit=2&offset=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	id := trades[0].(map[string]interface{})["id"].(string)
	w = ts.do(t, http.MethodGet, "/api/v1/trades/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/trades/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, query := range []string{"limit=0", "limit=abc", "limit=501", "offset=-1", "offset=x"} {
		w = ts.do(t, http.MethodGet, "/api/v1/trades?"+query, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestWalletLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/wallet", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "disconnected", body["status"])
	assert.Equal(t, true, body["available"])
	assert.Nil(t, body["address"])

	w = ts.do(t, http.MethodPost, "/api/v1/wallet/connect", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, "connected", body["status"])
	assert.Equal(t, ts.session.State().Address.String(), body["address"])
	assert.Equal(t, "keypair", body["provider"])

	w = ts.do(t, http.MethodPost, "/api/v1/wallet/disconnect", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, ts.session.State().Connected())
}

func TestWalletConnect_NoProvider(t *testing.T) {
	logger := testLogger()
	session := wallet.NewSession(context.Background(), nil, nil, logger)
	srv := New(":0", catalog.New(&catalog.Static{}, logger), session, nil, &fakeExecutor{ledger: ledger.New(nil)}, ledger.New(nil), nil, nil, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/connect", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndCORS(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = ts.do(t, http.MethodOptions, "/api/v1/trades", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Bridge and stream endpoints are not registered without their providers.
	w = ts.do(t, http.MethodGet, "/api/v1/wallet/bridge", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/stream/trades", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateWalletFilter(t *testing.T) {
	assert.NoError(t, validateWalletFilter("anonymous"))
	assert.NoError(t, validateWalletFilter(solAddress))
	assert.Error(t, validateWalletFilter("trades.>"))
	assert.Error(t, validateWalletFilter(strings.Repeat("A", 65)))
}

func TestBridgePage(t *testing.T) {
	renderer, err := NewTemplateRenderer(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handleBridgePage(renderer).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bridge", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "wallet")
}
