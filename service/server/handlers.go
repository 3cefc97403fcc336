package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/metrics"
	"github.com/brojonat/soltrade/service/pipeline"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/brojonat/soltrade/service/wallet"
	"github.com/gorilla/websocket"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB - plenty for a trade form
	defaultPageLimit   = 50
	maxPageLimit       = 500
)

// handleListTokens returns a handler that lists tradable tokens.
// GET /api/v1/tokens?q={query}
func handleListTokens(tokens *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		list, err := tokens.Search(r.Context(), query)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list tokens", "query", query, "error", err)
			writeError(w, "failed to load tokens", http.StatusBadGateway)
			return
		}

		logger.DebugContext(r.Context(), "tokens listed", "query", query, "count", len(list))

		writeJSON(w, map[string]interface{}{
			"tokens": list,
			"count":  len(list),
		}, http.StatusOK)
	})
}

// handleGetToken returns a handler that retrieves one token.
// GET /api/v1/tokens/{address}
func handleGetToken(tokens *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		if err := catalog.ValidateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		token, err := tokens.Get(r.Context(), address)
		if err != nil {
			writeTokenError(w, r, logger, address, err)
			return
		}

		writeJSON(w, token, http.StatusOK)
	})
}

// handleWatchToken returns a handler that adds a token to the watchlist.
// POST /api/v1/tokens
func handleWatchToken(tokens *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
		}
		if !decodeBody(w, r, logger, &req) {
			return
		}

		req.Address = strings.TrimSpace(req.Address)
		if err := catalog.ValidateAddress(req.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		token, err := tokens.Watch(r.Context(), req.Address)
		if err != nil {
			writeTokenError(w, r, logger, req.Address, err)
			return
		}

		writeJSON(w, token, http.StatusCreated)
	})
}

// createTradeRequest is the trade form as submitted by a client. Numeric
// fields are strings so they are validated exactly as typed.
type createTradeRequest struct {
	TokenAddress string `json:"token_address"`
	Direction    string `json:"direction"`
	Amount       string `json:"amount"`
	Slippage     string `json:"slippage"`
	StopPrice    string `json:"stop_price,omitempty"`
}

// handleCreateTrade returns a handler that validates and executes a trade.
// POST /api/v1/trades
//
// The response always carries the ledger record when one was written. The
// trade runs to completion even if the client goes away.
func handleCreateTrade(tokens *catalog.Catalog, session *wallet.Session, executor Executor, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createTradeRequest
		if !decodeBody(w, r, logger, &req) {
			return
		}

		req.TokenAddress = strings.TrimSpace(req.TokenAddress)
		if err := catalog.ValidateAddress(req.TokenAddress); err != nil {
			writeValidationError(w, m, &trade.ValidationError{Field: "token", Message: err.Error()})
			return
		}

		direction, err := trade.ParseDirection(req.Direction)
		if err != nil {
			writeValidationError(w, m, &trade.ValidationError{Field: "direction", Message: err.Error()})
			return
		}

		token, err := tokens.Get(r.Context(), req.TokenAddress)
		if err != nil {
			writeTokenError(w, r, logger, req.TokenAddress, err)
			return
		}

		slippage := req.Slippage
		if slippage == "" {
			slippage = trade.DefaultSlippage
		}

		intent, err := trade.Builder{Token: *token, Direction: direction}.
			Validate(req.Amount, slippage, req.StopPrice, req.StopPrice != "")
		if err != nil {
			var verr *trade.ValidationError
			if errors.As(err, &verr) {
				writeValidationError(w, m, verr)
				return
			}
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := executor.Execute(context.WithoutCancel(r.Context()), intent, session)
		if err == nil {
			writeJSON(w, map[string]interface{}{"trade": rec}, http.StatusCreated)
			return
		}

		status := http.StatusBadGateway
		if errors.Is(err, pipeline.ErrNoWalletSession) {
			status = http.StatusConflict
		}
		writeJSON(w, map[string]interface{}{
			"trade":  rec,
			"error":  pipeline.UserMessage(err),
			"reason": pipeline.Reason(err),
		}, status)
	})
}

// handleListTrades returns a handler that pages through the trade ledger, newest first.
// GET /api/v1/trades?limit={limit}&offset={offset}
func handleListTrades(trades *ledger.Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit, err := parseQueryInt(query.Get("limit"), defaultPageLimit)
		if err != nil || limit < 1 {
			writeError(w, "invalid limit parameter: must be a positive integer", http.StatusBadRequest)
			return
		}
		if limit > maxPageLimit {
			writeError(w, "limit cannot exceed "+strconv.Itoa(maxPageLimit), http.StatusBadRequest)
			return
		}

		offset, err := parseQueryInt(query.Get("offset"), 0)
		if err != nil {
			writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
			return
		}
		if offset < 0 {
			writeError(w, "offset cannot be negative", http.StatusBadRequest)
			return
		}

		records, total := trades.Page(offset, limit)

		logger.DebugContext(r.Context(), "trades listed", "count", len(records), "total", total)

		writeJSON(w, map[string]interface{}{
			"trades": records,
			"count":  len(records),
			"total":  total,
			"limit":  limit,
			"offset": offset,
		}, http.StatusOK)
	})
}

// handleGetTrade returns a handler that retrieves one ledger record.
// GET /api/v1/trades/{id}
func handleGetTrade(trades *ledger.Ledger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		rec, ok := trades.Get(id)
		if !ok {
			writeError(w, "trade not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rec, http.StatusOK)
	})
}

// walletResponse is the JSON response format for the wallet session.
type walletResponse struct {
	Status         string `json:"status"`
	Address        string `json:"address,omitempty"`
	Provider       string `json:"provider,omitempty"`
	Available      bool   `json:"available"`
	BridgeAttached *bool  `json:"bridge_attached,omitempty"`
}

func sessionToResponse(session *wallet.Session, bridge *wallet.Bridge) walletResponse {
	state := session.State()
	resp := walletResponse{
		Status:    string(state.Status),
		Provider:  state.Provider,
		Available: session.Available(),
	}
	if state.Connected() {
		resp.Address = state.Address.String()
	}
	if bridge != nil {
		attached := bridge.Attached()
		resp.BridgeAttached = &attached
	}
	return resp
}

// handleGetWallet returns a handler that reports the wallet session.
// GET /api/v1/wallet
func handleGetWallet(session *wallet.Session, bridge *wallet.Bridge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sessionToResponse(session, bridge), http.StatusOK)
	})
}

// handleConnectWallet returns a handler that asks the provider to connect.
// POST /api/v1/wallet/connect
func handleConnectWallet(session *wallet.Session, bridge *wallet.Bridge, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := session.Connect(r.Context())
		switch {
		case err == nil:
			writeJSON(w, sessionToResponse(session, bridge), http.StatusOK)
		case errors.Is(err, wallet.ErrWalletUnavailable):
			writeError(w, "no wallet available: open the bridge page or configure a keypair", http.StatusServiceUnavailable)
		case errors.Is(err, wallet.ErrConnectInProgress), errors.Is(err, wallet.ErrDisconnectInProgress):
			writeError(w, "a wallet request is already pending", http.StatusConflict)
		default:
			logger.WarnContext(r.Context(), "wallet connect failed", "error", err)
			writeError(w, "failed to connect wallet", http.StatusBadGateway)
		}
	})
}

// handleDisconnectWallet returns a handler that ends the wallet session.
// POST /api/v1/wallet/disconnect
func handleDisconnectWallet(session *wallet.Session, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := session.Disconnect(r.Context())
		if errors.Is(err, wallet.ErrConnectInProgress) || errors.Is(err, wallet.ErrDisconnectInProgress) {
			writeError(w, "a wallet request is already pending", http.StatusConflict)
			return
		}
		if err != nil {
			logger.WarnContext(r.Context(), "wallet disconnect failed", "error", err)
			writeError(w, "failed to disconnect wallet", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

var bridgeUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleBridgeSocket upgrades the bridge page's connection and serves it until it closes.
// GET /api/v1/wallet/bridge
func handleBridgeSocket(bridge *wallet.Bridge, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := bridgeUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logger.DebugContext(r.Context(), "bridge upgrade failed", "error", err)
			return
		}

		if err := bridge.Attach(r.Context(), conn); err != nil {
			logger.DebugContext(r.Context(), "bridge page detached", "error", err)
		}
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeValidationError writes a 400 naming the rejected field.
func writeValidationError(w http.ResponseWriter, m *metrics.Metrics, verr *trade.ValidationError) {
	if m != nil {
		m.RecordValidationFailure(verr.Field)
	}
	writeJSON(w, map[string]string{
		"error": verr.Error(),
		"field": verr.Field,
	}, http.StatusBadRequest)
}

func writeTokenError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, address string, err error) {
	switch {
	case errors.Is(err, catalog.ErrTokenNotFound):
		writeError(w, "token not found", http.StatusNotFound)
	case errors.Is(err, catalog.ErrInvalidAddress):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.ErrorContext(r.Context(), "failed to resolve token", "address", address, "error", err)
		writeError(w, "failed to load token", http.StatusBadGateway)
	}
}

// decodeBody decodes a size-limited JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.DebugContext(r.Context(), "failed to decode request", "error", err)
		if strings.Contains(err.Error(), "http: request body too large") {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func parseQueryInt(value string, defaultValue int) (int, error) {
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}
