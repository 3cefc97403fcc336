package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/brojonat/soltrade/service/config"
	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/metrics"
	natspkg "github.com/brojonat/soltrade/service/nats"
	"github.com/brojonat/soltrade/service/pipeline"
	"github.com/brojonat/soltrade/service/server"
	"github.com/brojonat/soltrade/service/solana"
	"github.com/brojonat/soltrade/service/tradeapi"
	"github.com/brojonat/soltrade/service/wallet"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"wallet_provider", cfg.WalletProvider,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Collectors go to the default registry served on /metrics.
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	endpoint, err := solana.SelectRandomEndpoint(cfg.SolanaRPCURLs)
	if err != nil {
		logger.Error("failed to select RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(
		solana.NewRPCClient(endpoint),
		endpointLabel(endpoint),
		solana.ClientOptions{
			Commitment:        rpc.CommitmentType(cfg.Commitment),
			RequestsPerSecond: cfg.RPCRequestsPerSecond,
		},
		m,
		logger,
	)
	logger.Info("initialized solana RPC client", "endpoint", endpointLabel(endpoint), "commitment", cfg.Commitment)

	// Trade-construction service
	if cfg.TradeAPIURL == "" {
		logger.Warn("TRADE_API_URL not set, trades will fail before reaching the wallet")
	}
	tradeService := tradeapi.NewClient(cfg.TradeAPIURL, &http.Client{Timeout: 30 * time.Second}, m, logger)

	// Token catalog
	var source catalog.Source
	if cfg.TokenCatalogFile != "" {
		static, err := catalog.LoadStatic(cfg.TokenCatalogFile)
		if err != nil {
			logger.Error("failed to load token catalog", "path", cfg.TokenCatalogFile, "error", err)
			os.Exit(1)
		}
		source = static
		logger.Info("loaded static token catalog", "path", cfg.TokenCatalogFile)
	} else {
		source = catalog.NewRemote(tradeService)
	}
	tokens := catalog.New(source, logger)

	// Wallet session
	policy, err := wallet.NewSigningPolicy(cfg.MaxSignLamports, cfg.SignAllowedPrograms)
	if err != nil {
		logger.Error("invalid signing policy", "error", err)
		os.Exit(1)
	}
	if cfg.WalletProvider == config.WalletProviderKeypair {
		logger.Info("keypair signing policy",
			"max_lamports", policy.MaxLamports,
			"allowed_programs", len(policy.AllowedPrograms),
			"unrestricted", policy.Unrestricted(),
		)
	}
	provider, bridge, err := wallet.Discover(cfg, policy.Approver(logger), logger)
	if err != nil {
		logger.Error("failed to initialize wallet provider", "error", err)
		os.Exit(1)
	}
	session := wallet.NewSession(ctx, provider, m, logger)

	trades := ledger.New(m)

	// Trade events are optional; without NATS the stream endpoint is disabled.
	var publisher natspkg.Publisher
	var ssePublisher *server.SSEPublisher
	if cfg.NATSURL != "" {
		jsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer jsPublisher.Close()
		publisher = jsPublisher

		ssePublisher, err = server.NewSSEPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		defer ssePublisher.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Info("NATS_URL not set, trade events disabled")
	}

	executor := pipeline.New(
		pipeline.Config{
			Retry: solana.RetryPolicy{
				MaxAttempts:    cfg.BroadcastMaxAttempts,
				InitialBackoff: cfg.BroadcastInitialBackoff,
				MaxBackoff:     cfg.BroadcastMaxBackoff,
			},
			Confirm: solana.ConfirmOptions{
				Timeout:      cfg.ConfirmTimeout,
				PollInterval: cfg.ConfirmPollInterval,
			},
		},
		tradeService,
		solanaClient,
		trades,
		publisher,
		nil,
		m,
		logger,
	)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, tokens, session, bridge, executor, trades, ssePublisher, m, logger)
	if err := httpServer.WithTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	logger.Info("server initialized, all dependencies ready",
		"wallet_available", session.Available(),
		"bridge", bridge != nil,
		"events", publisher != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()

		// In-flight trades may still be confirming.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ConfirmTimeout+10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete", "trades_recorded", trades.Len())
	}
}

// endpointLabel reduces an RPC URL to its host so API keys never reach logs or metric labels.
func endpointLabel(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
