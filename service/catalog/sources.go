package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/brojonat/soltrade/service/tradeapi"
	"gopkg.in/yaml.v3"
)

// Remote is a Source backed by the trade-construction service.
type Remote struct {
	client *tradeapi.Client
}

// NewRemote creates a Source over the trade service client.
func NewRemote(client *tradeapi.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) List(ctx context.Context) ([]Token, error) {
	infos, err := r.client.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	tokens := make([]Token, 0, len(infos))
	for _, info := range infos {
		tokens = append(tokens, fromInfo(info))
	}
	return tokens, nil
}

func (r *Remote) Get(ctx context.Context, address string) (*Token, error) {
	info, err := r.client.GetToken(ctx, address)
	if errors.Is(err, tradeapi.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	token := fromInfo(*info)
	return &token, nil
}

func fromInfo(info tradeapi.TokenInfo) Token {
	return Token{
		Address:        info.Address,
		Symbol:         info.Symbol,
		Name:           info.Name,
		LogoURL:        info.LogoURI,
		Decimals:       info.Decimals,
		Price:          info.Price,
		PriceChange24h: info.PriceChange24h,
		Volume24hUSD:   info.Volume24hUSD,
		Liquidity:      info.Liquidity,
		MarketCap:      info.MarketCap,
	}
}

// Static is a fixed Source, typically loaded from a YAML file.
type Static struct {
	tokens []Token
	index  map[string]int
}

type staticFile struct {
	Tokens []Token `yaml:"tokens"`
}

// NewStatic creates a Source over tokens. Every address must be valid and unique.
func NewStatic(tokens []Token) (*Static, error) {
	s := &Static{index: make(map[string]int, len(tokens))}
	for _, t := range tokens {
		if err := ValidateAddress(t.Address); err != nil {
			return nil, fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		if _, dup := s.index[t.Address]; dup {
			return nil, fmt.Errorf("token %s: duplicate address %s", t.Symbol, t.Address)
		}
		s.index[t.Address] = len(s.tokens)
		s.tokens = append(s.tokens, t)
	}
	return s, nil
}

// LoadStatic reads a YAML token list of the form `tokens: [{address, symbol, ...}]`.
func LoadStatic(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token catalog: %w", err)
	}
	var file staticFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token catalog %s: %w", path, err)
	}
	return NewStatic(file.Tokens)
}

func (s *Static) List(ctx context.Context) ([]Token, error) {
	out := make([]Token, len(s.tokens))
	copy(out, s.tokens)
	return out, nil
}

func (s *Static) Get(ctx context.Context, address string) (*Token, error) {
	i, ok := s.index[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenNotFound, address)
	}
	token := s.tokens[i]
	return &token, nil
}
