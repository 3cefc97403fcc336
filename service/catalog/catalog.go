// Package catalog provides the tradable token list.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

var (
	// ErrTokenNotFound is returned when a token address is not in the catalog.
	ErrTokenNotFound = errors.New("token not found")

	// ErrInvalidAddress is returned when a string is not a base58 32-byte address.
	ErrInvalidAddress = errors.New("invalid token address")
)

// Token is a tradable token.
type Token struct {
	Address        string          `json:"address" yaml:"address"`
	Symbol         string          `json:"symbol" yaml:"symbol"`
	Name           string          `json:"name" yaml:"name"`
	LogoURL        string          `json:"logo_url,omitempty" yaml:"logo_url"`
	Decimals       uint8           `json:"decimals" yaml:"decimals"`
	Price          decimal.Decimal `json:"price" yaml:"price"`
	PriceChange24h float64         `json:"price_change_24h" yaml:"price_change_24h"`
	Volume24hUSD   float64         `json:"volume_24h_usd" yaml:"volume_24h_usd"`
	Liquidity      float64         `json:"liquidity" yaml:"liquidity"`
	MarketCap      float64         `json:"market_cap" yaml:"market_cap"`
}

// Source supplies token data.
type Source interface {
	List(ctx context.Context) ([]Token, error)
	Get(ctx context.Context, address string) (*Token, error)
}

// Catalog serves tokens from a Source plus a watchlist of addresses added at runtime.
type Catalog struct {
	source Source
	logger *slog.Logger

	mu      sync.RWMutex
	watched map[string]Token
	order   []string
}

// New creates a catalog over source.
func New(source Source, logger *slog.Logger) *Catalog {
	return &Catalog{
		source:  source,
		logger:  logger,
		watched: make(map[string]Token),
	}
}

// List returns source tokens followed by watched tokens the source did not list.
func (c *Catalog) List(ctx context.Context) ([]Token, error) {
	tokens, err := c.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t.Address] = struct{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, addr := range c.order {
		if _, ok := seen[addr]; !ok {
			tokens = append(tokens, c.watched[addr])
		}
	}
	return tokens, nil
}

// Get returns a token by address, preferring fresh source data.
func (c *Catalog) Get(ctx context.Context, address string) (*Token, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	token, err := c.source.Get(ctx, address)
	if err == nil {
		return token, nil
	}

	c.mu.RLock()
	watched, ok := c.watched[address]
	c.mu.RUnlock()
	if ok {
		c.logger.DebugContext(ctx, "serving watched token from cache", "address", address, "error", err)
		return &watched, nil
	}
	return nil, err
}

// Search filters the catalog by case-insensitive symbol or name substring,
// or by exact address. An empty query returns everything.
func (c *Catalog) Search(ctx context.Context, query string) ([]Token, error) {
	tokens, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(tokens, query), nil
}

// Watch adds a token to the watchlist after resolving it against the source.
func (c *Catalog) Watch(ctx context.Context, address string) (*Token, error) {
	token, err := c.Get(ctx, address)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.watched[address]; !ok {
		c.order = append(c.order, address)
	}
	c.watched[address] = *token
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "token added to watchlist", "address", address, "symbol", token.Symbol)
	return token, nil
}

// Filter returns the tokens matching query, ordered by symbol.
func Filter(tokens []Token, query string) []Token {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if q == "" ||
			t.Address == query ||
			strings.Contains(strings.ToLower(t.Symbol), q) ||
			strings.Contains(strings.ToLower(t.Name), q) {
			out = append(out, t)
		}
	}
	if q != "" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	}
	return out
}

// ValidateAddress checks that address is base58 and decodes to 32 bytes.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("%w: %q is not base58", ErrInvalidAddress, address)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: %q decodes to %d bytes, expected 32", ErrInvalidAddress, address, len(raw))
	}
	return nil
}
