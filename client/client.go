// Package client is the Go client for the soltrade daemon's HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Token is a tradable token as listed by the daemon.
type Token struct {
	Address        string          `json:"address"`
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	LogoURL        string          `json:"logo_url,omitempty"`
	Decimals       uint8           `json:"decimals"`
	Price          decimal.Decimal `json:"price"`
	PriceChange24h float64         `json:"price_change_24h"`
	Volume24hUSD   float64         `json:"volume_24h_usd"`
	Liquidity      float64         `json:"liquidity"`
	MarketCap      float64         `json:"market_cap"`
}

// Trade is one entry in the daemon's trade history.
type Trade struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	Direction     string           `json:"direction"`
	TokenAddress  string           `json:"token_address"`
	TokenSymbol   string           `json:"token_symbol"`
	TokenName     string           `json:"token_name"`
	Amount        decimal.Decimal  `json:"amount"`
	Price         decimal.Decimal  `json:"price"`
	Total         decimal.Decimal  `json:"total"`
	SlippageBps   uint16           `json:"slippage_bps"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	Status        string           `json:"status"` // completed, pending, failed
	Reason        string           `json:"reason,omitempty"`
	Error         string           `json:"error,omitempty"`
	Signature     string           `json:"signature,omitempty"`
	WalletAddress string           `json:"wallet_address,omitempty"`
}

// TradeRequest is the trade form. Amounts are strings so they are validated
// by the daemon exactly as the user typed them.
type TradeRequest struct {
	TokenAddress string `json:"token_address"`
	Direction    string `json:"direction"` // BUY or SELL
	Amount       string `json:"amount"`
	Slippage     string `json:"slippage,omitempty"` // percent: 0.5, 1 or 2
	StopPrice    string `json:"stop_price,omitempty"`
}

// TradePage is one page of trade history.
type TradePage struct {
	Trades []Trade `json:"trades"`
	Count  int     `json:"count"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// WalletStatus is the daemon's wallet session.
type WalletStatus struct {
	Status         string `json:"status"` // disconnected, connecting, connected
	Address        string `json:"address,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Available      bool   `json:"available"`
	BridgeAttached *bool  `json:"bridge_attached,omitempty"`
}

// TradeEvent is a trade lifecycle event from the stream endpoint.
type TradeEvent struct {
	Type          string          `json:"type"` // pending, completed, failed
	TradeID       string          `json:"trade_id"`
	Signature     string          `json:"signature,omitempty"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Direction     string          `json:"direction"`
	TokenAddress  string          `json:"token_address"`
	TokenSymbol   string          `json:"token_symbol"`
	TokenName     string          `json:"token_name"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	PublishedAt   time.Time       `json:"published_at"`
}

// APIError is a non-success response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
	Field      string // set for trade form validation errors
	Reason     string // set for failed trades
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the soltrade daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new daemon client. Trades block until confirmation, so
// the default HTTP timeout is generous.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListTokens returns the token catalog, filtered by query when non-empty.
func (c *Client) ListTokens(ctx context.Context, query string) ([]Token, error) {
	path := "/api/v1/tokens"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}

	var out struct {
		Tokens []Token `json:"tokens"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

// GetToken retrieves one token by mint address.
func (c *Client) GetToken(ctx context.Context, address string) (*Token, error) {
	var token Token
	if err := c.do(ctx, http.MethodGet, "/api/v1/tokens/"+url.PathEscape(address), nil, http.StatusOK, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// WatchToken adds a token to the daemon's watchlist.
func (c *Client) WatchToken(ctx context.Context, address string) (*Token, error) {
	var token Token
	body := map[string]string{"address": address}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tokens", body, http.StatusCreated, &token); err != nil {
		return nil, err
	}
	c.logger.Debug("token watched", "address", address, "symbol", token.Symbol)
	return &token, nil
}

// Trade submits a trade and waits for its outcome. A failed trade returns the
// recorded Trade together with an *APIError carrying the failure reason.
func (c *Client) Trade(ctx context.Context, req TradeRequest) (*Trade, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/trades", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out struct {
		Trade  *Trade `json:"trade"`
		Error  string `json:"error"`
		Field  string `json:"field"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if resp.StatusCode == http.StatusCreated && out.Trade != nil {
		c.logger.Debug("trade completed", "id", out.Trade.ID, "signature", out.Trade.Signature)
		return out.Trade, nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: out.Error, Field: out.Field, Reason: out.Reason}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return out.Trade, apiErr
}

// ListTrades returns a page of trade history, newest first.
func (c *Client) ListTrades(ctx context.Context, limit, offset int) (*TradePage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/trades"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page TradePage
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTrade retrieves one trade by ID.
func (c *Client) GetTrade(ctx context.Context, id string) (*Trade, error) {
	var trade Trade
	if err := c.do(ctx, http.MethodGet, "/api/v1/trades/"+url.PathEscape(id), nil, http.StatusOK, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

// Wallet returns the wallet session status.
func (c *Client) Wallet(ctx context.Context) (*WalletStatus, error) {
	var status WalletStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/wallet", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ConnectWallet asks the daemon to connect its wallet provider.
func (c *Client) ConnectWallet(ctx context.Context) (*WalletStatus, error) {
	var status WalletStatus
	if err := c.do(ctx, http.MethodPost, "/api/v1/wallet/connect", nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// DisconnectWallet ends the daemon's wallet session.
func (c *Client) DisconnectWallet(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/wallet/disconnect", nil, http.StatusNoContent, nil)
}

// Health checks that the daemon is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

// StreamTrades follows trade events until ctx is cancelled or the stream ends.
// An empty wallet streams events for every wallet. fn is called for each event;
// returning an error stops the stream and is returned.
func (c *Client) StreamTrades(ctx context.Context, wallet string, fn func(TradeEvent) error) error {
	u := c.baseURL + "/api/v1/stream/trades"
	if wallet != "" {
		u += "?wallet=" + url.QueryEscape(wallet)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout for streaming; the transport and ctx still apply.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var currentEvent, currentData string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if currentEvent == "trade" && currentData != "" {
				var event TradeEvent
				if err := json.Unmarshal([]byte(currentData), &event); err != nil {
					c.logger.Warn("failed to decode trade event", "error", err)
				} else if err := fn(event); err != nil {
					return err
				}
			}
			currentEvent = ""
			currentData = ""
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in interface{}, expectStatus int, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectStatus {
		return c.parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Field: errResp.Field}
}
