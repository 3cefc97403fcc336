package trade

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brojonat/soltrade/service/catalog"
	"github.com/shopspring/decimal"
)

// amountPattern accepts digits with at most one decimal point, including the
// partial forms a user types on the way to a number ("", "1.", ".5").
var amountPattern = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// SlippageOptions are the accepted slippage tolerances, in percent.
var SlippageOptions = []string{"0.5", "1", "2"}

var slippageBps = map[string]uint16{
	"0.5": 50,
	"1":   100,
	"2":   200,
}

// DefaultSlippage is preselected when the user has not chosen one.
const DefaultSlippage = "1"

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AcceptInput returns next if it is an acceptable partial amount, and current otherwise.
// It is applied on every keystroke so the field never holds a malformed number.
func AcceptInput(current, next string) string {
	if amountPattern.MatchString(next) {
		return next
	}
	return current
}

// Builder validates raw trade form input for one token and direction.
type Builder struct {
	Token     catalog.Token
	Direction Direction
}

// Validate checks raw input and produces an Intent, or a *ValidationError
// naming the first offending field.
func (b Builder) Validate(rawAmount, rawSlippage, rawStopPrice string, stopEnabled bool) (*Intent, error) {
	if err := catalog.ValidateAddress(b.Token.Address); err != nil {
		return nil, invalid("token", "%v", err)
	}
	if b.Direction != Buy && b.Direction != Sell {
		return nil, invalid("direction", "must be BUY or SELL")
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return nil, invalid("amount", "%v", err)
	}
	if amount.Sign() <= 0 {
		return nil, invalid("amount", "must be greater than zero")
	}
	if _, err := ToBaseUnits(amount, b.Token.Decimals); err != nil {
		return nil, invalid("amount", "%v", err)
	}

	if rawSlippage == "" {
		rawSlippage = DefaultSlippage
	}
	bps, ok := slippageBps[strings.TrimSpace(rawSlippage)]
	if !ok {
		return nil, invalid("slippage", "must be one of %s", strings.Join(SlippageOptions, ", "))
	}

	intent := &Intent{
		Token:       b.Token,
		Direction:   b.Direction,
		Amount:      amount,
		SlippageBps: bps,
	}

	if stopEnabled {
		stop, err := parseAmount(rawStopPrice)
		if err != nil {
			return nil, invalid("stop_price", "%v", err)
		}
		if stop.Sign() <= 0 {
			return nil, invalid("stop_price", "must be greater than zero")
		}
		intent.StopPrice = &stop
	}

	return intent, nil
}

// parseAmount parses a complete decimal amount typed by a user.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "." {
		return decimal.Decimal{}, fmt.Errorf("is required")
	}
	if !amountPattern.MatchString(raw) {
		return decimal.Decimal{}, fmt.Errorf("%q is not a number", raw)
	}
	if strings.HasPrefix(raw, ".") {
		raw = "0" + raw
	}
	raw = strings.TrimSuffix(raw, ".")
	return decimal.NewFromString(raw)
}
