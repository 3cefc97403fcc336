// Package ledger keeps the session's trade history in memory.
package ledger

import (
	"sync"
	"time"

	"github.com/brojonat/soltrade/service/metrics"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/shopspring/decimal"
)

// Status is the final outcome of a trade.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Record is one entry in the trade history.
type Record struct {
	ID            string           `json:"id"`
	Timestamp     time.Time        `json:"timestamp"`
	Direction     trade.Direction  `json:"direction"`
	TokenAddress  string           `json:"token_address"`
	TokenSymbol   string           `json:"token_symbol"`
	TokenName     string           `json:"token_name"`
	Amount        decimal.Decimal  `json:"amount"`
	Price         decimal.Decimal  `json:"price"`
	Total         decimal.Decimal  `json:"total"`
	SlippageBps   uint16           `json:"slippage_bps"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	Status        Status           `json:"status"`
	Reason        string           `json:"reason,omitempty"`
	Error         string           `json:"error,omitempty"`
	Signature     string           `json:"signature,omitempty"`
	WalletAddress string           `json:"wallet_address,omitempty"`
}

// NewRecord starts a pending record for intent. Price and Total are taken from
// the token's price at validation time.
func NewRecord(intent *trade.Intent, walletAddress string, now time.Time) Record {
	return Record{
		ID:            NewID(now),
		Timestamp:     now.UTC(),
		Direction:     intent.Direction,
		TokenAddress:  intent.Token.Address,
		TokenSymbol:   intent.Token.Symbol,
		TokenName:     intent.Token.Name,
		Amount:        intent.Amount,
		Price:         intent.Token.Price,
		Total:         intent.Total(),
		SlippageBps:   intent.SlippageBps,
		StopPrice:     intent.StopPrice,
		Status:        StatusPending,
		WalletAddress: walletAddress,
	}
}

// Ledger is an append-only, in-memory trade history.
type Ledger struct {
	metrics *metrics.Metrics

	mu         sync.RWMutex
	records    []Record
	byID       map[string]int
	signatures map[string]struct{}
}

// New creates an empty ledger. If m is nil, no metrics are recorded.
func New(m *metrics.Metrics) *Ledger {
	return &Ledger{
		metrics:    m,
		byID:       make(map[string]int),
		signatures: make(map[string]struct{}),
	}
}

// Append adds rec and returns the stored copy. A completed record whose
// signature is already in the ledger is dropped and Append reports false.
func (l *Ledger) Append(rec Record) (Record, bool) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = NewID(rec.Timestamp)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Status == StatusCompleted && rec.Signature != "" {
		if _, dup := l.signatures[rec.Signature]; dup {
			if l.metrics != nil {
				l.metrics.RecordLedgerDuplicate()
			}
			return rec, false
		}
		l.signatures[rec.Signature] = struct{}{}
	}

	l.byID[rec.ID] = len(l.records)
	l.records = append(l.records, rec)
	return rec, true
}

// List returns all records, newest first.
func (l *Ledger) List() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.newestFirst(0, len(l.records))
}

// Page returns up to limit records, newest first, skipping offset, along with
// the total number of records.
func (l *Ledger) Page(offset, limit int) ([]Record, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.records)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []Record{}, total
	}
	end := min(offset+limit, total)
	return l.newestFirst(offset, end), total
}

// Get returns the record with the given ID.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byID[id]
	if !ok {
		return Record{}, false
	}
	return l.records[i], true
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// newestFirst copies positions [from, to) of the newest-first ordering. Caller holds l.mu.
func (l *Ledger) newestFirst(from, to int) []Record {
	out := make([]Record, 0, to-from)
	last := len(l.records) - 1
	for i := from; i < to; i++ {
		out = append(out, l.records[last-i])
	}
	return out
}
