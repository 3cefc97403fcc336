package nats

import (
	"testing"
	"time"

	"github.com/brojonat/soltrade/service/ledger"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFromRecord(t *testing.T) {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := ledger.Record{
		ID:            "01HZZZ",
		Timestamp:     ts,
		Direction:     trade.Sell,
		TokenAddress:  "So11111111111111111111111111111111111111112",
		TokenSymbol:   "SOL",
		TokenName:     "Wrapped SOL",
		Amount:        decimal.RequireFromString("1.5"),
		Price:         decimal.RequireFromString("91.22"),
		Total:         decimal.RequireFromString("136.83"),
		Status:        ledger.StatusFailed,
		Reason:        "broadcast_failed",
		WalletAddress: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU",
	}

	event := FromRecord(EventTradeFailed, rec)
	assert.Equal(t, EventTradeFailed, event.Type)
	assert.Equal(t, "01HZZZ", event.TradeID)
	assert.Equal(t, "SELL", event.Direction)
	assert.Equal(t, "SOL", event.TokenSymbol)
	assert.Equal(t, "Wrapped SOL", event.TokenName)
	assert.Equal(t, "failed", event.Status)
	assert.Equal(t, "broadcast_failed", event.Reason)
	assert.Equal(t, ts, event.Timestamp)
	assert.False(t, event.PublishedAt.IsZero())
	assert.Equal(t, "trades.7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", event.Subject())
}

func TestSubjectFor_Anonymous(t *testing.T) {
	assert.Equal(t, "trades.anonymous", SubjectFor(""))
}
