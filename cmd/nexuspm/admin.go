package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Strob0t/NexusPM/internal/adapter/ws"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Maintenance commands against the configured store"}
	cmd.AddCommand(adminResetCmd(), adminSeedCmd())
	return cmd
}

// withApp opens the store, wires the services and runs fn. The event bus is
// a hub without observers, so pulses go nowhere.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	a, err := buildApp(cfg, b, ws.NewHub())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func adminResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored record and reseed the default projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				ok, err := confirm("This deletes all projects, runs, connections and history. Continue? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(os.Stderr, "Aborted.")
					return nil
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.admin.Reset(ctx)
				if err != nil {
					return fmt.Errorf("reset: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Reset complete: %d keys flushed, %d projects seeded\n", res.FlushedKeys, res.SeededProjects)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func adminSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create or refresh the default projects and their connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				n, err := a.admin.Seed(ctx)
				if err != nil {
					return fmt.Errorf("seed: %w", err)
				}
				fmt.Fprintf(os.Stderr, "Seeded %d projects\n", n)
				return nil
			})
		},
	}
}

// confirm asks a yes/no question on the terminal. Without a terminal it
// refuses, so scripts must pass --yes.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // G115: fd fits in int
		return false, errors.New("stdin is not a terminal; pass --yes to confirm")
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
