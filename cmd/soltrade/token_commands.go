package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/brojonat/soltrade/client"
	"github.com/urfave/cli/v2"
)

func tokenCommands() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Token catalog commands",
		Subcommands: []*cli.Command{
			tokenListCommand(),
			tokenGetCommand(),
			tokenWatchCommand(),
		},
	}
}

func tokenListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls", "search"},
		Usage:     "List tradable tokens, optionally filtered by name or symbol",
		ArgsUsage: "[QUERY]",
		Action: func(c *cli.Context) error {
			tokens, err := newClient(c).ListTokens(c.Context, strings.Join(c.Args().Slice(), " "))
			if err != nil {
				return fmt.Errorf("failed to list tokens: %w", err)
			}

			if c.Bool("json") {
				return printJSON(os.Stdout, tokens)
			}
			printTokens(os.Stdout, tokens)
			return nil
		},
	}
}

func tokenGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one token by address or symbol",
		ArgsUsage: "ADDRESS|SYMBOL",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("token address or symbol is required")
			}

			token, err := resolveToken(c, newClient(c), c.Args().Get(0))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(os.Stdout, token)
			}
			printToken(os.Stdout, token)
			return nil
		},
	}
}

func tokenWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"add"},
		Usage:     "Add a token to the daemon's watchlist by mint address",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("token address is required")
			}

			token, err := newClient(c).WatchToken(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to watch token: %w", err)
			}

			if c.Bool("json") {
				return printJSON(os.Stdout, token)
			}
			fmt.Printf("✓ Watching %s (%s)\n", token.Symbol, token.Address)
			return nil
		},
	}
}

// resolveToken accepts a mint address or a symbol. A symbol must match
// exactly one catalog entry.
func resolveToken(c *cli.Context, cl *client.Client, ref string) (*client.Token, error) {
	token, err := cl.GetToken(c.Context, ref)
	if err == nil {
		return token, nil
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || (apiErr.StatusCode != http.StatusBadRequest && apiErr.StatusCode != http.StatusNotFound) {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	tokens, err := cl.ListTokens(c.Context, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to search tokens: %w", err)
	}
	var matches []client.Token
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no token matches %q", ref)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("symbol %q is ambiguous (%d tokens), use the mint address", ref, len(matches))
	}
}
