// Package tradeapi talks to the trade-construction service, a GraphQL API
// that lists tokens and builds unsigned swap transactions.
package tradeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/soltrade/service/metrics"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when the service has no record of a token.
var ErrNotFound = errors.New("token not found")

// Action is the side of a trade as the service names it.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// TradeRequest asks the service to build a transaction.
type TradeRequest struct {
	Action        Action
	TokenAddress  string
	WalletAddress string
	Slippage      decimal.Decimal // percent, e.g. 1 for 1%
	Amount        uint64          // token base units
}

// TokenInfo is the token shape returned by the service.
type TokenInfo struct {
	Address           string          `json:"address"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	LogoURI           string          `json:"logoURI"`
	Decimals          uint8           `json:"decimals"`
	Price             decimal.Decimal `json:"price"`
	LastTradeUnixTime int64           `json:"lastTradeUnixTime"`
	Liquidity         float64         `json:"liquidity"`
	MarketCap         float64         `json:"mc"`
	PriceChange24h    float64         `json:"v24hChangePercent"`
	Volume24hUSD      float64         `json:"v24hUSD"`
}

const tokenFields = "address name symbol logoURI decimals price lastTradeUnixTime liquidity mc v24hChangePercent v24hUSD"

const (
	tradeQuery = `query Trade($type: String!, $address: String!, $publicKey: String!, $slippage: Float!, $amount: String!) {
  trade(type: $type, address: $address, publicKey: $publicKey, slippage: $slippage, amount: $amount)
}`
	tokensQuery = `query Tokens { tokens { ` + tokenFields + ` } }`
	tokenQuery  = `query Token($address: String!) { token(address: $address) { ` + tokenFields + ` } }`
)

// Client is the GraphQL client for the trade-construction service.
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new trade service client.
func NewClient(endpoint string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// BuildTransaction requests an unsigned transaction for req and returns it as
// a base64 wire-format payload.
func (c *Client) BuildTransaction(ctx context.Context, req TradeRequest) (string, error) {
	vars := map[string]any{
		"type":      string(req.Action),
		"address":   req.TokenAddress,
		"publicKey": req.WalletAddress,
		"slippage":  req.Slippage.InexactFloat64(),
		"amount":    strconv.FormatUint(req.Amount, 10),
	}

	var data struct {
		Trade *string `json:"trade"`
	}
	if err := c.do(ctx, "trade", tradeQuery, vars, &data); err != nil {
		return "", err
	}
	if data.Trade == nil || strings.TrimSpace(*data.Trade) == "" {
		return "", fmt.Errorf("trade service returned no transaction")
	}

	c.logger.DebugContext(ctx, "trade transaction built",
		"action", string(req.Action),
		"token", req.TokenAddress,
		"amount", req.Amount,
	)
	return *data.Trade, nil
}

// ListTokens returns every token the service knows about.
func (c *Client) ListTokens(ctx context.Context) ([]TokenInfo, error) {
	var data struct {
		Tokens []TokenInfo `json:"tokens"`
	}
	if err := c.do(ctx, "tokens", tokensQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Tokens, nil
}

// GetToken returns a single token by mint address.
func (c *Client) GetToken(ctx context.Context, address string) (*TokenInfo, error) {
	var data struct {
		Token *TokenInfo `json:"token"`
	}
	if err := c.do(ctx, "token", tokenQuery, map[string]any{"address": address}, &data); err != nil {
		return nil, err
	}
	if data.Token == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return data.Token, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) do(ctx context.Context, operation, query string, vars map[string]any, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordTradeAPIRequest(operation, err, time.Since(start).Seconds())
		}
	}()

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("trade service returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var gql graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gql); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gql.Errors) > 0 {
		msgs := make([]string, 0, len(gql.Errors))
		for _, e := range gql.Errors {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("trade service %s query failed: %s", operation, strings.Join(msgs, "; "))
	}
	if len(gql.Data) == 0 || string(gql.Data) == "null" {
		return fmt.Errorf("trade service %s query returned no data", operation)
	}

	if err := json.Unmarshal(gql.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", operation, err)
	}
	return nil
}
