package solana

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidPayload is returned when a transaction payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid transaction payload")

	// ErrSignerMissing is returned when a transaction does not require the wallet's signature.
	ErrSignerMissing = errors.New("wallet is not a required signer")

	// ErrBlockhashExpired is returned when the block height passes the blockhash's validity window
	// before the signature is observed.
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")

	// ErrConfirmTimeout is returned when confirmation does not resolve within the configured timeout.
	ErrConfirmTimeout = errors.New("confirmation timed out")

	// ErrTransactionFailed is returned when the network reports the transaction as failed on-chain.
	ErrTransactionFailed = errors.New("transaction failed on-chain")
)

// Blockhash is a recent blockhash and the last block height at which a
// transaction referencing it can still land.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Summary describes the parts of a decoded trade transaction we care about
// before asking a wallet to sign it.
type Summary struct {
	FeePayer         solana.PublicKey
	Signers          []solana.PublicKey
	Programs         []solana.PublicKey
	RecentBlockhash  solana.Hash
	Versioned        bool
	InstructionCount int
	LamportsOut      uint64 // native SOL moved out of the fee payer by system transfers
}

// RetryPolicy bounds how often and how quickly a broadcast is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns five attempts with exponential backoff from 500ms to 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// Backoff returns the delay to wait after the given zero-based failed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	d := p.InitialBackoff << uint(attempt)
	if d <= 0 || (p.MaxBackoff > 0 && d > p.MaxBackoff) {
		return p.MaxBackoff
	}
	return d
}

// ConfirmOptions controls how confirmation is polled.
type ConfirmOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Confirmation is the observed outcome of a confirmed transaction.
type Confirmation struct {
	Signature solana.Signature
	Slot      uint64
	Status    string
}
