package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the daemon is up and report its wallet session",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			cl := newClient(c)
			if err := cl.Health(ctx); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Printf("✓ Daemon is healthy at %s\n", c.String("server"))

			// Wallet details are best effort.
			status, err := cl.Wallet(ctx)
			if err != nil {
				return nil
			}
			switch {
			case !status.Available:
				fmt.Println("  Wallet: no provider")
			case status.Address != "":
				fmt.Printf("  Wallet: %s (%s)\n", status.Status, status.Address)
			default:
				fmt.Printf("  Wallet: %s\n", status.Status)
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show CLI build information",
		Action: func(c *cli.Context) error {
			fmt.Printf("soltrade %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
