package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, "https://trade.example.com/graphql", cfg.TradeAPIURL)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, "confirmed", cfg.Commitment)
	assert.Equal(t, WalletProviderBridge, cfg.WalletProvider)
	assert.Equal(t, 5, cfg.BroadcastMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.BroadcastInitialBackoff)
	assert.Equal(t, 4*time.Second, cfg.BroadcastMaxBackoff)
	assert.Equal(t, 60*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConfirmPollInterval)
	assert.Equal(t, 5, cfg.RPCRequestsPerSecond)
}

func TestLoad_MissingSolanaRPCURLs(t *testing.T) {
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_URLS is required")
}

func TestLoad_MissingTradeSource(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TRADE_API_URL is required")
}

func TestLoad_CatalogFileSatisfiesTradeSource(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TOKEN_CATALOG_FILE", "tokens.yaml")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tokens.yaml", cfg.TokenCatalogFile)
}

func TestLoad_InvalidDuration(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	os.Setenv("CONFIRM_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidInteger(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	os.Setenv("BROADCAST_MAX_ATTEMPTS", "five")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://a.example.com, https://b.example.com,")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("WALLET_PROVIDER", "keypair")
	os.Setenv("SOLANA_PRIVATE_KEY_BASE58", "secret")
	os.Setenv("BROADCAST_MAX_ATTEMPTS", "3")
	os.Setenv("CONFIRM_TIMEOUT", "30s")
	os.Setenv("COMMITMENT", "finalized")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.SolanaRPCURLs)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, WalletProviderKeypair, cfg.WalletProvider)
	assert.Equal(t, "secret", cfg.PrivateKeyBase58)
	assert.Equal(t, 3, cfg.BroadcastMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, "finalized", cfg.Commitment)
}

func validConfig() *Config {
	return &Config{
		SolanaRPCURLs:           []string{"https://api.mainnet-beta.solana.com"},
		TradeAPIURL:             "https://trade.example.com/graphql",
		Commitment:              "confirmed",
		WalletProvider:          WalletProviderBridge,
		RPCRequestsPerSecond:    5,
		BroadcastMaxAttempts:    5,
		BroadcastInitialBackoff: 500 * time.Millisecond,
		BroadcastMaxBackoff:     4 * time.Second,
		ConfirmTimeout:          60 * time.Second,
		ConfirmPollInterval:     2 * time.Second,
	}
}

func TestLoad_SigningPolicy(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.MaxSignLamports)
	assert.Empty(t, cfg.SignAllowedPrograms)

	os.Setenv("MAX_SIGN_LAMPORTS", "5000000000")
	os.Setenv("SIGN_ALLOWED_PROGRAMS", "11111111111111111111111111111111, JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000_000), cfg.MaxSignLamports)
	assert.Equal(t, []string{"11111111111111111111111111111111", "JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"}, cfg.SignAllowedPrograms)

	os.Setenv("MAX_SIGN_LAMPORTS", "-1")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_SIGN_LAMPORTS")
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"missing rpc urls", func(c *Config) { c.SolanaRPCURLs = nil }, "SolanaRPCURLs is required"},
		{"missing trade source", func(c *Config) { c.TradeAPIURL = "" }, "TradeAPIURL or TokenCatalogFile is required"},
		{"bad commitment", func(c *Config) { c.Commitment = "max" }, "Commitment must be"},
		{"bad provider", func(c *Config) { c.WalletProvider = "ledger" }, "WalletProvider must be"},
		{"keypair without key", func(c *Config) { c.WalletProvider = WalletProviderKeypair }, "PrivateKeyBase58 is required"},
		{"zero attempts", func(c *Config) { c.BroadcastMaxAttempts = 0 }, "BroadcastMaxAttempts must be at least 1"},
		{"backoff inverted", func(c *Config) { c.BroadcastInitialBackoff = 10 * time.Second }, "cannot be greater than"},
		{"short timeout", func(c *Config) {
			c.ConfirmTimeout = 500 * time.Millisecond
			c.ConfirmPollInterval = 100 * time.Millisecond
		}, "must be at least 1 second"},
		{"poll longer than timeout", func(c *Config) { c.ConfirmPollInterval = 2 * time.Minute }, "ConfirmPollInterval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	os.Setenv("SOLANA_RPC_URLS", "https://api.mainnet-beta.solana.com")
	os.Setenv("TRADE_API_URL", "https://trade.example.com/graphql")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"SOLANA_RPC_URLS", "TRADE_API_URL", "TOKEN_CATALOG_FILE", "SERVER_ADDR",
		"LOG_LEVEL", "NATS_URL", "WALLET_PROVIDER", "SOLANA_PRIVATE_KEY_BASE58",
		"BROADCAST_MAX_ATTEMPTS", "BROADCAST_INITIAL_BACKOFF", "BROADCAST_MAX_BACKOFF",
		"CONFIRM_TIMEOUT", "CONFIRM_POLL_INTERVAL", "RPC_REQUESTS_PER_SECOND", "COMMITMENT",
		"MAX_SIGN_LAMPORTS", "SIGN_ALLOWED_PROGRAMS",
	} {
		os.Unsetenv(key)
	}
}
