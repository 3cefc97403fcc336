package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Wallet provider kinds accepted by WALLET_PROVIDER.
const (
	WalletProviderKeypair = "keypair"
	WalletProviderBridge  = "bridge"
	WalletProviderNone    = "none"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURLs        []string
	Commitment           string
	RPCRequestsPerSecond int

	// Trade-construction and token catalog service
	TradeAPIURL      string
	TokenCatalogFile string

	// NATS configuration (empty disables trade event publishing)
	NATSURL string

	// Wallet configuration
	WalletProvider   string
	PrivateKeyBase58 string

	// Keypair signing policy (zero and empty mean unrestricted)
	MaxSignLamports     uint64
	SignAllowedPrograms []string

	// Pipeline configuration
	BroadcastMaxAttempts    int
	BroadcastInitialBackoff time.Duration
	BroadcastMaxBackoff     time.Duration
	ConfirmTimeout          time.Duration
	ConfirmPollInterval     time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// A .env file in the working directory is loaded first if present.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURLs = splitList(os.Getenv("SOLANA_RPC_URLS"))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS is required"))
	}
	cfg.Commitment = getEnvOrDefault("COMMITMENT", "confirmed")

	rps, err := parseInt("RPC_REQUESTS_PER_SECOND", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCRequestsPerSecond = rps
	}

	// Trade service configuration
	cfg.TradeAPIURL = os.Getenv("TRADE_API_URL")
	cfg.TokenCatalogFile = os.Getenv("TOKEN_CATALOG_FILE")
	if cfg.TradeAPIURL == "" && cfg.TokenCatalogFile == "" {
		errs = append(errs, fmt.Errorf("TRADE_API_URL is required unless TOKEN_CATALOG_FILE is set"))
	}

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Wallet configuration
	cfg.WalletProvider = getEnvOrDefault("WALLET_PROVIDER", WalletProviderBridge)
	cfg.PrivateKeyBase58 = os.Getenv("SOLANA_PRIVATE_KEY_BASE58")
	if v := os.Getenv("MAX_SIGN_LAMPORTS"); v != "" {
		lamports, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_SIGN_LAMPORTS: invalid lamport amount %q: %w", v, err))
		} else {
			cfg.MaxSignLamports = lamports
		}
	}
	cfg.SignAllowedPrograms = splitList(os.Getenv("SIGN_ALLOWED_PROGRAMS"))

	// Pipeline configuration
	attempts, err := parseInt("BROADCAST_MAX_ATTEMPTS", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BroadcastMaxAttempts = attempts
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"BROADCAST_INITIAL_BACKOFF", "500ms", &cfg.BroadcastInitialBackoff},
		{"BROADCAST_MAX_BACKOFF", "4s", &cfg.BroadcastMaxBackoff},
		{"CONFIRM_TIMEOUT", "60s", &cfg.ConfirmTimeout},
		{"CONFIRM_POLL_INTERVAL", "2s", &cfg.ConfirmPollInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.dest = v
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.TradeAPIURL == "" && c.TokenCatalogFile == "" {
		errs = append(errs, fmt.Errorf("TradeAPIURL or TokenCatalogFile is required"))
	}

	switch c.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("Commitment must be processed, confirmed or finalized, got %q", c.Commitment))
	}

	switch c.WalletProvider {
	case WalletProviderKeypair:
		if c.PrivateKeyBase58 == "" {
			errs = append(errs, fmt.Errorf("PrivateKeyBase58 is required for the keypair wallet provider"))
		}
	case WalletProviderBridge, WalletProviderNone:
	default:
		errs = append(errs, fmt.Errorf("WalletProvider must be keypair, bridge or none, got %q", c.WalletProvider))
	}

	if c.RPCRequestsPerSecond < 1 {
		errs = append(errs, fmt.Errorf("RPCRequestsPerSecond must be at least 1"))
	}

	if c.BroadcastMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("BroadcastMaxAttempts must be at least 1"))
	}

	if c.BroadcastInitialBackoff > c.BroadcastMaxBackoff {
		errs = append(errs, fmt.Errorf("BroadcastInitialBackoff cannot be greater than BroadcastMaxBackoff"))
	}

	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}

	if c.ConfirmPollInterval <= 0 || c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive and no greater than ConfirmTimeout"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma separated list, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
