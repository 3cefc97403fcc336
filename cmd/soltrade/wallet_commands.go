package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func walletCommands() *cli.Command {
	return &cli.Command{
		Name:  "wallet",
		Usage: "Wallet session commands",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show the daemon's wallet session",
				Action: func(c *cli.Context) error {
					status, err := newClient(c).Wallet(c.Context)
					if err != nil {
						return fmt.Errorf("failed to get wallet status: %w", err)
					}
					if c.Bool("json") {
						return printJSON(os.Stdout, status)
					}
					printWallet(os.Stdout, status)
					return nil
				},
			},
			{
				Name:  "connect",
				Usage: "Connect the daemon's wallet provider",
				Action: func(c *cli.Context) error {
					status, err := newClient(c).ConnectWallet(c.Context)
					if err != nil {
						return fmt.Errorf("failed to connect wallet: %w", err)
					}
					if c.Bool("json") {
						return printJSON(os.Stdout, status)
					}
					printWallet(os.Stdout, status)
					return nil
				},
			},
			{
				Name:  "disconnect",
				Usage: "Disconnect the daemon's wallet",
				Action: func(c *cli.Context) error {
					if err := newClient(c).DisconnectWallet(c.Context); err != nil {
						return fmt.Errorf("failed to disconnect wallet: %w", err)
					}
					fmt.Println("✓ Wallet disconnected")
					return nil
				},
			},
		},
	}
}
