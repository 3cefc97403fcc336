package pipeline

import (
	"errors"
)

// Failure sentinels. Every error returned by Execute wraps exactly one of these.
var (
	ErrNoWalletSession     = errors.New("no wallet session")
	ErrQuoteFailed         = errors.New("trade service could not build the transaction")
	ErrDecodeFailed        = errors.New("transaction payload could not be decoded")
	ErrSigningRejected     = errors.New("signing rejected")
	ErrSigningFailed       = errors.New("signing failed")
	ErrBroadcastFailed     = errors.New("broadcast failed")
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	ErrTransactionFailed   = errors.New("transaction failed on-chain")
)

var reasons = []struct {
	err    error
	reason string
	// message is shown to the user after "Trade failed: ".
	message string
}{
	{ErrNoWalletSession, "no_wallet_session", "connect a wallet first"},
	{ErrQuoteFailed, "quote_failed", "could not get a quote for this trade"},
	{ErrDecodeFailed, "decode_failed", "received an invalid transaction"},
	{ErrSigningRejected, "signing_rejected", "you rejected the signature request"},
	{ErrSigningFailed, "signing_failed", "the wallet could not sign the transaction"},
	{ErrBroadcastFailed, "broadcast_failed", "the network did not accept the transaction"},
	{ErrConfirmationTimeout, "confirmation_timeout", "the transaction was not confirmed in time"},
	{ErrTransactionFailed, "transaction_failed", "the transaction failed on-chain"},
}

// Reason returns the stable machine-readable reason for a pipeline error,
// or "" for nil.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "unknown"
}

// UserMessage returns a short, user-facing explanation of a pipeline error.
func UserMessage(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.message
		}
	}
	return "something went wrong"
}
