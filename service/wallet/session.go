package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brojonat/soltrade/service/metrics"
	"github.com/brojonat/soltrade/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Status is the connection status of a wallet session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// State is a point-in-time view of a session.
type State struct {
	Status   Status
	Address  solanago.PublicKey // zero unless Status is StatusConnected
	Provider string
}

// Connected reports whether the session can sign.
func (s State) Connected() bool {
	return s.Status == StatusConnected
}

// Session is the single source of truth for wallet connection state.
// Provider-initiated events override locally driven transitions.
type Session struct {
	provider Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu            sync.RWMutex
	status        Status
	address       solanago.PublicKey
	disconnecting bool
}

// NewSession creates a session over provider, which may be nil when no wallet
// is installed. If the provider already trusts a key the session starts
// connected. Provider events are consumed until ctx is done.
func NewSession(ctx context.Context, provider Provider, m *metrics.Metrics, logger *slog.Logger) *Session {
	s := &Session{
		provider: provider,
		metrics:  m,
		logger:   logger,
		status:   StatusDisconnected,
	}

	if provider == nil {
		logger.WarnContext(ctx, "no wallet provider available")
		return s
	}

	if key, ok := provider.PublicKey(); ok && isOnCurve(key) {
		s.status = StatusConnected
		s.address = key
		logger.InfoContext(ctx, "wallet already trusted, session connected",
			"provider", provider.Name(),
			"address", key.String(),
		)
	}
	if m != nil {
		m.RecordWalletConnected(s.status == StatusConnected)
	}

	go s.watch(ctx, provider.Events())

	return s
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := State{Status: s.status, Address: s.address}
	if s.provider != nil {
		state.Provider = s.provider.Name()
	}
	return state
}

// Available reports whether a wallet provider exists at all.
func (s *Session) Available() bool {
	return s.provider != nil
}

// Connect asks the provider for access to the wallet. Calling Connect on a
// connected session returns the current address without contacting the provider.
func (s *Session) Connect(ctx context.Context) (solanago.PublicKey, error) {
	if s.provider == nil {
		s.logger.WarnContext(ctx, "connect requested but no wallet provider is available")
		return solanago.PublicKey{}, ErrWalletUnavailable
	}

	s.mu.Lock()
	if s.disconnecting {
		s.mu.Unlock()
		return solanago.PublicKey{}, ErrDisconnectInProgress
	}
	switch s.status {
	case StatusConnecting:
		s.mu.Unlock()
		return solanago.PublicKey{}, ErrConnectInProgress
	case StatusConnected:
		addr := s.address
		s.mu.Unlock()
		return addr, nil
	}
	s.setLocked(ctx, StatusConnecting, solanago.PublicKey{})
	s.mu.Unlock()

	key, err := s.provider.Connect(ctx)
	if err == nil && !isOnCurve(key) {
		err = fmt.Errorf("provider returned %s, which is not a wallet public key", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if s.status == StatusConnecting {
			s.setLocked(ctx, StatusDisconnected, solanago.PublicKey{})
		}
		s.logger.WarnContext(ctx, "wallet connect failed",
			"provider", s.provider.Name(),
			"error", err,
		)
		if errors.Is(err, ErrWalletUnavailable) {
			return solanago.PublicKey{}, ErrWalletUnavailable
		}
		return solanago.PublicKey{}, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	switch s.status {
	case StatusConnecting:
		s.setLocked(ctx, StatusConnected, key)
	case StatusDisconnected:
		// A provider disconnect event arrived while the request was in flight.
		return solanago.PublicKey{}, fmt.Errorf("%w: provider disconnected during connect", ErrConnectFailed)
	}
	return s.address, nil
}

// Disconnect releases the wallet. Disconnecting an already disconnected
// session is a no-op. It fails with ErrConnectInProgress while a connect is
// pending and with ErrDisconnectInProgress while another disconnect is. If the
// provider fails, the state is left unchanged.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}

	s.mu.Lock()
	switch {
	case s.disconnecting:
		s.mu.Unlock()
		return ErrDisconnectInProgress
	case s.status == StatusConnecting:
		s.mu.Unlock()
		return ErrConnectInProgress
	case s.status == StatusDisconnected:
		s.mu.Unlock()
		return nil
	}
	s.disconnecting = true
	s.mu.Unlock()

	err := s.provider.Disconnect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnecting = false

	if err != nil {
		s.logger.ErrorContext(ctx, "wallet disconnect failed",
			"provider", s.provider.Name(),
			"error", err,
		)
		return fmt.Errorf("failed to disconnect wallet: %w", err)
	}
	s.setLocked(ctx, StatusDisconnected, solanago.PublicKey{})
	return nil
}

// Sign asks the wallet to sign tx. The returned transaction carries the
// session address's signature.
func (s *Session) Sign(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	state := s.State()
	if !state.Connected() {
		return nil, ErrNotConnected
	}

	signed, err := s.provider.SignTransaction(ctx, tx)
	switch {
	case errors.Is(err, ErrSigningRejected):
		s.recordSignature("rejected")
		s.logger.InfoContext(ctx, "signing rejected by wallet holder", "address", state.Address.String())
		return nil, err
	case err != nil:
		s.recordSignature("error")
		return nil, fmt.Errorf("wallet signing failed: %w", err)
	case signed == nil || !solana.IsSignedBy(signed, state.Address):
		s.recordSignature("error")
		return nil, fmt.Errorf("wallet returned a transaction without a signature from %s", state.Address)
	}

	s.recordSignature("signed")
	return signed, nil
}

func (s *Session) watch(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.apply(ctx, ev)
		}
	}
}

func (s *Session) apply(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventConnect:
		if !isOnCurve(ev.PublicKey) {
			s.logger.WarnContext(ctx, "ignoring connect event with invalid key", "address", ev.PublicKey.String())
			return
		}
		s.setLocked(ctx, StatusConnected, ev.PublicKey)
	case EventDisconnect:
		s.setLocked(ctx, StatusDisconnected, solanago.PublicKey{})
	}
}

// setLocked transitions the session. Caller must hold s.mu.
func (s *Session) setLocked(ctx context.Context, status Status, address solanago.PublicKey) {
	if s.status == status && s.address == address {
		return
	}
	s.logger.InfoContext(ctx, "wallet session state changed",
		"from", string(s.status),
		"to", string(status),
		"address", address.String(),
	)
	s.status = status
	s.address = address
	if s.metrics != nil {
		s.metrics.RecordWalletConnected(status == StatusConnected)
	}
}

func (s *Session) recordSignature(result string) {
	if s.metrics != nil {
		s.metrics.RecordSignatureRequest(result)
	}
}
