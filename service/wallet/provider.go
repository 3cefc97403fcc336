// Package wallet tracks the connection to the user's wallet and routes
// transaction signing through it.
package wallet

import (
	"context"
	"errors"

	"filippo.io/edwards25519"
	solanago "github.com/gagliardetto/solana-go"
)

var (
	// ErrWalletUnavailable is returned when no wallet provider can be reached.
	ErrWalletUnavailable = errors.New("wallet unavailable")

	// ErrConnectFailed is returned when the provider rejects or fails a connect request.
	ErrConnectFailed = errors.New("wallet connect failed")

	// ErrConnectInProgress is returned when Connect is called while a connect is pending.
	ErrConnectInProgress = errors.New("wallet connect already in progress")

	// ErrDisconnectInProgress is returned when a transition is requested while a disconnect is pending.
	ErrDisconnectInProgress = errors.New("wallet disconnect already in progress")

	// ErrNotConnected is returned when signing is attempted without a connected session.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrSigningRejected is returned when the wallet holder declines to sign.
	ErrSigningRejected = errors.New("signing rejected by wallet")
)

// EventKind identifies a provider-initiated state change.
type EventKind string

const (
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
)

// Event is a connection change the provider reports on its own, for example
// when the user switches or disconnects the wallet outside the application.
type Event struct {
	Kind      EventKind
	PublicKey solanago.PublicKey
}

// Provider is the capability interface to an external wallet.
type Provider interface {
	// Name identifies the provider in logs and API responses.
	Name() string
	// PublicKey returns the key the provider is already trusted with, if any.
	PublicKey() (solanago.PublicKey, bool)
	Connect(ctx context.Context) (solanago.PublicKey, error)
	Disconnect(ctx context.Context) error
	// SignTransaction returns the transaction with the wallet's signature applied.
	SignTransaction(ctx context.Context, tx *solanago.Transaction) (*solanago.Transaction, error)
	// Events delivers provider-initiated connect and disconnect notifications.
	Events() <-chan Event
}

// isOnCurve reports whether key is a valid ed25519 point, i.e. a key a
// wallet could hold, rather than a program-derived address.
func isOnCurve(key solanago.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}
