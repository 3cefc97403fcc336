package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/brojonat/soltrade/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Approver decides whether a transaction may be signed. It stands in for the
// confirmation prompt a browser wallet shows its user.
type Approver func(ctx context.Context, summary solana.Summary) bool

// KeypairProvider is a wallet backed by a locally held private key.
type KeypairProvider struct {
	key     solanago.PrivateKey
	approve Approver
	events  chan Event

	mu        sync.Mutex
	connected bool
}

// NewKeypairProvider creates a provider for key. A nil approve signs everything.
func NewKeypairProvider(key solanago.PrivateKey, approve Approver) *KeypairProvider {
	return &KeypairProvider{
		key:     key,
		approve: approve,
		events:  make(chan Event, 8),
	}
}

// ParsePrivateKey decodes a base58 encoded 64-byte ed25519 keypair.
func ParsePrivateKey(encoded string) (solanago.PrivateKey, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("private key is not base58: %w", err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("private key must be 64 bytes, got %d", len(raw))
	}
	key := solanago.PrivateKey(raw)
	if !isOnCurve(key.PublicKey()) {
		return nil, fmt.Errorf("private key does not match an ed25519 public key")
	}
	return key, nil
}

func (p *KeypairProvider) Name() string { return "keypair" }

func (p *KeypairProvider) PublicKey() (solanago.PublicKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key.PublicKey(), p.connected
}

func (p *KeypairProvider) Connect(ctx context.Context) (solanago.PublicKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return p.key.PublicKey(), nil
}

func (p *KeypairProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// Revoke drops the connection from the provider side and notifies listeners,
// the same way a user disconnecting from their wallet would.
func (p *KeypairProvider) Revoke() {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()

	select {
	case p.events <- Event{Kind: EventDisconnect}:
	default:
	}
}

func (p *KeypairProvider) SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error) {
	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	if p.approve != nil && !p.approve(ctx, solana.Inspect(tx)) {
		return nil, ErrSigningRejected
	}

	if _, err := solana.SignWith(tx, p.key); err != nil {
		return nil, err
	}
	return tx, nil
}

func (p *KeypairProvider) Events() <-chan Event {
	return p.events
}
