package nats

import (
	"time"

	"github.com/brojonat/soltrade/service/ledger"
	"github.com/shopspring/decimal"
)

// Trade event types.
const (
	EventTradePending   = "pending"   // broadcast accepted, awaiting confirmation
	EventTradeCompleted = "completed" // confirmed and recorded
	EventTradeFailed    = "failed"    // recorded as failed
)

// anonymousWallet is the subject token for trades attempted without a wallet.
const anonymousWallet = "anonymous"

// TradeEvent represents a trade lifecycle event published to NATS.
// This is published to the subject "trades.{wallet_address}" in JetStream.
type TradeEvent struct {
	Type string `json:"type"`

	// Trade identifiers
	TradeID   string `json:"trade_id"`
	Signature string `json:"signature,omitempty"`

	// Wallet information
	WalletAddress string `json:"wallet_address,omitempty"`

	// Trade details
	Direction    string          `json:"direction"`
	TokenAddress string          `json:"token_address"`
	TokenSymbol  string          `json:"token_symbol"`
	TokenName    string          `json:"token_name"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Error        string          `json:"error,omitempty"`

	// Timing information
	Timestamp time.Time `json:"timestamp"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromRecord converts a ledger record to a TradeEvent of the given type.
func FromRecord(eventType string, rec ledger.Record) *TradeEvent {
	return &TradeEvent{
		Type:          eventType,
		TradeID:       rec.ID,
		Signature:     rec.Signature,
		WalletAddress: rec.WalletAddress,
		Direction:     string(rec.Direction),
		TokenAddress:  rec.TokenAddress,
		TokenSymbol:   rec.TokenSymbol,
		TokenName:     rec.TokenName,
		Amount:        rec.Amount,
		Price:         rec.Price,
		Total:         rec.Total,
		Status:        string(rec.Status),
		Reason:        rec.Reason,
		Error:         rec.Error,
		Timestamp:     rec.Timestamp,
		PublishedAt:   time.Now().UTC(),
	}
}

// Subject returns the subject the event is published on.
func (e *TradeEvent) Subject() string {
	return SubjectFor(e.WalletAddress)
}

// SubjectFor returns the trade subject for a wallet address.
func SubjectFor(walletAddress string) string {
	if walletAddress == "" {
		walletAddress = anonymousWallet
	}
	return SubjectPrefix + walletAddress
}
