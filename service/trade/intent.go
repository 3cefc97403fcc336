// Package trade turns raw user input into validated trade intents.
package trade

import (
	"fmt"
	"strings"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/shopspring/decimal"
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// ParseDirection accepts buy/sell in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("invalid direction %q: must be BUY or SELL", s)
	}
}

// Verb is the past-tense verb used in user-facing messages.
func (d Direction) Verb() string {
	if d == Sell {
		return "Sold"
	}
	return "Bought"
}

// Intent is a validated trade, ready for the transaction pipeline.
type Intent struct {
	Token       catalog.Token
	Direction   Direction
	Amount      decimal.Decimal // human units of Token
	SlippageBps uint16
	StopPrice   *decimal.Decimal // recorded only; no automatic execution
}

// Slippage returns the tolerance as a percentage, e.g. 1 for 100 bps.
func (i *Intent) Slippage() decimal.Decimal {
	return decimal.NewFromInt(int64(i.SlippageBps)).Div(decimal.NewFromInt(100))
}

// Total is Amount multiplied by the token's price at validation time.
func (i *Intent) Total() decimal.Decimal {
	return i.Amount.Mul(i.Token.Price)
}

// BaseUnits converts Amount to the token's smallest unit, truncating any
// precision beyond the token's decimals.
func (i *Intent) BaseUnits() (uint64, error) {
	return ToBaseUnits(i.Amount, i.Token.Decimals)
}

// ToBaseUnits scales amount by 10^decimals and truncates toward zero.
// Amounts that truncate to zero or overflow uint64 are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	scaled := amount.Shift(int32(decimals)).Truncate(0)
	if scaled.Sign() <= 0 {
		return 0, fmt.Errorf("amount %s is below the smallest unit of a %d-decimal token", amount, decimals)
	}
	units := scaled.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s is too large", amount)
	}
	return units.Uint64(), nil
}
