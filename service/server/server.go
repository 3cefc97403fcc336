package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/metrics"
	"github.com/brojonat/soltrade/service/pipeline"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/brojonat/soltrade/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Executor runs a validated trade to completion.
type Executor interface {
	Execute(ctx context.Context, intent *trade.Intent, signer pipeline.Signer) (*ledger.Record, error)
}

// Server represents the local HTTP API for the trading daemon.
type Server struct {
	addr         string
	catalog      *catalog.Catalog
	session      *wallet.Session
	bridge       *wallet.Bridge
	executor     Executor
	ledger       *ledger.Ledger
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The bridge is optional - if nil, the browser wallet endpoints won't be available.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(
	addr string,
	tokens *catalog.Catalog,
	session *wallet.Session,
	bridge *wallet.Bridge,
	executor Executor,
	trades *ledger.Ledger,
	ssePublisher *SSEPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	return &Server{
		addr:         addr,
		catalog:      tokens,
		session:      session,
		bridge:       bridge,
		executor:     executor,
		ledger:       trades,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Token catalog routes
	route("GET /api/v1/tokens", "/api/v1/tokens", handleListTokens(s.catalog, s.logger))
	route("GET /api/v1/tokens/{address}", "/api/v1/tokens/{address}", handleGetToken(s.catalog, s.logger))
	route("POST /api/v1/tokens", "/api/v1/tokens", handleWatchToken(s.catalog, s.logger))

	// Trade routes
	route("POST /api/v1/trades", "/api/v1/trades", handleCreateTrade(s.catalog, s.session, s.executor, s.metrics, s.logger))
	route("GET /api/v1/trades", "/api/v1/trades", handleListTrades(s.ledger, s.logger))
	route("GET /api/v1/trades/{id}", "/api/v1/trades/{id}", handleGetTrade(s.ledger, s.logger))

	// Wallet session routes
	route("GET /api/v1/wallet", "/api/v1/wallet", handleGetWallet(s.session, s.bridge))
	route("POST /api/v1/wallet/connect", "/api/v1/wallet/connect", handleConnectWallet(s.session, s.bridge, s.logger))
	route("POST /api/v1/wallet/disconnect", "/api/v1/wallet/disconnect", handleDisconnectWallet(s.session, s.logger))

	// Browser wallet bridge (if the bridge provider is configured)
	if s.bridge != nil {
		route("GET /api/v1/wallet/bridge", "/api/v1/wallet/bridge", handleBridgeSocket(s.bridge, s.logger))
		if s.renderer != nil {
			mux.HandleFunc("GET /bridge", handleBridgePage(s.renderer))
			mux.HandleFunc("GET /{$}", handleBridgePage(s.renderer))
		}
		s.logger.Info("wallet bridge endpoints enabled")
	}

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		route("GET /api/v1/stream/trades", "/api/v1/stream/trades", handleStreamTrades(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Trades wait for confirmation and SSE/bridge connections are long lived,
		// so writes are bounded per handler rather than here.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
