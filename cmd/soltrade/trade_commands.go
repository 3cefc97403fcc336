package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/brojonat/soltrade/client"
	"github.com/brojonat/soltrade/service/catalog"
	"github.com/brojonat/soltrade/service/trade"
	"github.com/urfave/cli/v2"
)

func tradeCommands() *cli.Command {
	return &cli.Command{
		Name:  "trade",
		Usage: "Place buy and sell orders through the daemon's wallet",
		Subcommands: []*cli.Command{
			tradeCommand(trade.Buy),
			tradeCommand(trade.Sell),
		},
	}
}

func tradeCommand(direction trade.Direction) *cli.Command {
	name := "buy"
	if direction == trade.Sell {
		name = "sell"
	}

	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("%s a token", name),
		ArgsUsage: "ADDRESS|SYMBOL AMOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "slippage",
				Value: trade.DefaultSlippage,
				Usage: "Slippage tolerance in percent (0.5, 1 or 2)",
			},
			&cli.StringFlag{
				Name:  "stop-price",
				Usage: "Stop price to record with the trade",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("token and amount are required")
			}

			cl := newClient(c)
			token, err := resolveToken(c, cl, c.Args().Get(0))
			if err != nil {
				return err
			}
			amount := c.Args().Get(1)
			stopPrice := c.String("stop-price")

			// Check the form locally so obvious mistakes never reach the wallet.
			if _, err := (trade.Builder{Token: toCatalogToken(token), Direction: direction}).
				Validate(amount, c.String("slippage"), stopPrice, stopPrice != ""); err != nil {
				return err
			}

			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Submitting %s of %s %s, approve it in your wallet...\n", name, amount, token.Symbol)
			}

			rec, err := cl.Trade(c.Context, client.TradeRequest{
				TokenAddress: token.Address,
				Direction:    string(direction),
				Amount:       amount,
				Slippage:     c.String("slippage"),
				StopPrice:    stopPrice,
			})
			if rec != nil {
				if c.Bool("json") {
					if perr := printJSON(os.Stdout, rec); perr != nil {
						return perr
					}
				} else {
					printTrade(os.Stdout, rec)
				}
			}
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Reason != "" {
					return fmt.Errorf("trade failed: %s", apiErr.Message)
				}
				return fmt.Errorf("trade failed: %w", err)
			}
			return nil
		},
	}
}

func toCatalogToken(t *client.Token) catalog.Token {
	return catalog.Token{
		Address:  t.Address,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		Price:    t.Price,
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"trades"},
		Usage:   "List trade history, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Value:   20,
				Usage:   "Maximum number of trades to retrieve (1-500)",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of trades to skip",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show trades with this status (completed, failed)",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter each trade must satisfy (repeatable), e.g. '.total | tonumber > 100'",
			},
		},
		Action: func(c *cli.Context) error {
			matcher, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			page, err := newClient(c).ListTrades(c.Context, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list trades: %w", err)
			}

			status := c.String("status")
			trades := make([]client.Trade, 0, len(page.Trades))
			for _, t := range page.Trades {
				if status != "" && t.Status != status {
					continue
				}
				ok, err := matcher.Match(t)
				if err != nil {
					return fmt.Errorf("jq filter failed on trade %s: %w", t.ID, err)
				}
				if ok {
					trades = append(trades, t)
				}
			}

			if c.Bool("json") {
				return printJSON(os.Stdout, trades)
			}

			if len(trades) == 0 {
				fmt.Println("No trades found")
				return nil
			}
			for _, t := range trades {
				printTradeRow(os.Stdout, t)
			}
			fmt.Printf("\nShowing %d of %d trades\n", len(trades), page.Total)
			return nil
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Follow trade events as they happen (requires NATS on the daemon)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Only stream trades for this wallet address",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter each event must satisfy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			matcher, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Streaming trades... (Ctrl+C to stop)\n\n")
			}

			return newClient(c).StreamTrades(c.Context, c.String("wallet"), func(e client.TradeEvent) error {
				ok, err := matcher.Match(e)
				if err != nil || !ok {
					return nil
				}
				if jsonOutput {
					return printJSON(os.Stdout, e)
				}
				mark := "•"
				switch e.Type {
				case "completed":
					mark = "✓"
				case "failed":
					mark = "✗"
				}
				fmt.Printf("%s %-9s %-4s %s %s  %s\n", mark, e.Type, e.Direction, e.Amount.String(), e.TokenSymbol, e.Signature)
				return nil
			})
		},
	}
}
