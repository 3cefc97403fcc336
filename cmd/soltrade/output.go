package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/brojonat/soltrade/client"
	"github.com/shopspring/decimal"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printTokens(w io.Writer, tokens []client.Token) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, "No tokens found")
		return
	}
	fmt.Fprintf(w, "%-8s %-20s %14s %9s  %s\n", "SYMBOL", "NAME", "PRICE", "24H", "ADDRESS")
	for _, t := range tokens {
		fmt.Fprintf(w, "%-8s %-20s %14s %+8.2f%%  %s\n",
			t.Symbol, truncate(t.Name, 20), "$"+t.Price.String(), t.PriceChange24h, t.Address)
	}
}

func printToken(w io.Writer, t *client.Token) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s (%s)\n", t.Name, t.Symbol)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Address:     %s\n", t.Address)
	fmt.Fprintf(w, "Decimals:    %d\n", t.Decimals)
	fmt.Fprintf(w, "Price:       $%s\n", t.Price.String())
	fmt.Fprintf(w, "24h Change:  %+.2f%%\n", t.PriceChange24h)
	fmt.Fprintf(w, "24h Volume:  $%s\n", decimal.NewFromFloat(t.Volume24hUSD).StringFixed(0))
	if t.Liquidity > 0 {
		fmt.Fprintf(w, "Liquidity:   $%s\n", decimal.NewFromFloat(t.Liquidity).StringFixed(0))
	}
	if t.MarketCap > 0 {
		fmt.Fprintf(w, "Market Cap:  $%s\n", decimal.NewFromFloat(t.MarketCap).StringFixed(0))
	}
}

func printTrade(w io.Writer, t *client.Trade) {
	fmt.Fprintln(w, rule)
	if t.Status == "completed" {
		fmt.Fprintf(w, "✓ %s %s %s\n", verb(t.Direction), t.Amount.String(), t.TokenSymbol)
	} else {
		fmt.Fprintf(w, "✗ %s %s %s %s\n", strings.ToLower(t.Direction), t.Amount.String(), t.TokenSymbol, t.Status)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "ID:          %s\n", t.ID)
	if t.TokenName != "" {
		fmt.Fprintf(w, "Token:       %s (%s)\n", t.TokenName, t.TokenSymbol)
	}
	fmt.Fprintf(w, "Price:       $%s\n", t.Price.String())
	fmt.Fprintf(w, "Total:       $%s\n", t.Total.StringFixed(2))
	fmt.Fprintf(w, "Slippage:    %s%%\n", decimal.New(int64(t.SlippageBps), -2).String())
	if t.StopPrice != nil {
		fmt.Fprintf(w, "Stop Price:  $%s\n", t.StopPrice.String())
	}
	if t.WalletAddress != "" {
		fmt.Fprintf(w, "Wallet:      %s\n", t.WalletAddress)
	}
	if t.Signature != "" {
		fmt.Fprintf(w, "Signature:   %s\n", t.Signature)
	}
	if t.Reason != "" {
		fmt.Fprintf(w, "Reason:      %s\n", t.Reason)
	}
	fmt.Fprintf(w, "Time:        %s\n", t.Timestamp.Local().Format("2006-01-02 15:04:05"))
}

func printTradeRow(w io.Writer, t client.Trade) {
	mark := "✓"
	if t.Status != "completed" {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s  %-4s %12s %-8s %-20s @ $%-12s = $%-12s %s\n",
		mark,
		t.Timestamp.Local().Format("2006-01-02 15:04:05"),
		t.Direction,
		t.Amount.String(),
		t.TokenSymbol,
		truncate(t.TokenName, 20),
		t.Price.String(),
		t.Total.StringFixed(2),
		statusDetail(t),
	)
}

func statusDetail(t client.Trade) string {
	switch {
	case t.Status == "completed" && t.Signature != "":
		return truncate(t.Signature, 16)
	case t.Reason != "":
		return t.Status + " (" + t.Reason + ")"
	default:
		return t.Status
	}
}

func printWallet(w io.Writer, s *client.WalletStatus) {
	switch {
	case !s.Available:
		fmt.Fprintln(w, "✗ No wallet provider configured")
	case s.Status == "connected":
		fmt.Fprintf(w, "✓ Connected: %s\n", s.Address)
	default:
		fmt.Fprintf(w, "Wallet %s\n", s.Status)
	}
	if s.Provider != "" {
		fmt.Fprintf(w, "  Provider: %s\n", s.Provider)
	}
	if s.BridgeAttached != nil {
		fmt.Fprintf(w, "  Bridge page attached: %v\n", *s.BridgeAttached)
	}
}

func verb(direction string) string {
	if strings.EqualFold(direction, "SELL") {
		return "Sold"
	}
	return "Bought"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
