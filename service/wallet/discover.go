package wallet

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/soltrade/service/config"
)

// Discover builds the wallet provider selected by configuration. It returns a
// nil Provider when wallets are disabled, and the Bridge when one is in use so
// the caller can expose its websocket endpoint.
func Discover(cfg *config.Config, approve Approver, logger *slog.Logger) (Provider, *Bridge, error) {
	switch cfg.WalletProvider {
	case config.WalletProviderKeypair:
		key, err := ParsePrivateKey(cfg.PrivateKeyBase58)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load keypair wallet: %w", err)
		}
		logger.Info("using keypair wallet provider", "address", key.PublicKey().String())
		return NewKeypairProvider(key, approve), nil, nil

	case config.WalletProviderBridge:
		// The bridge round trip includes the user reading the wallet prompt.
		bridge := NewBridge(cfg.ConfirmTimeout+time.Minute, logger)
		logger.Info("using browser wallet bridge provider")
		return bridge, bridge, nil

	case config.WalletProviderNone, "":
		logger.Info("wallet provider disabled")
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown wallet provider %q", cfg.WalletProvider)
	}
}
