package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/NexusPM/internal/adapter/postgres"
	"github.com/Strob0t/NexusPM/internal/adapter/sqlite"
	"github.com/Strob0t/NexusPM/internal/config"
)

func migrateCmd() *cobra.Command {
	var (
		down   int
		status bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or report schema migrations of the SQL backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closer, err := loadConfig()
			if err != nil {
				return err
			}
			defer closer.Close()
			ctx := cmd.Context()

			switch cfg.Store.Backend {
			case config.BackendPostgres:
				switch {
				case status:
				case down > 0:
					if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, down); err != nil {
						return err
					}
				default:
					if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
						return err
					}
				}
				v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "postgres schema at version %d\n", v)
				return nil

			case config.BackendSQLite:
				if down > 0 {
					return errors.New("sqlite migrations cannot be rolled back")
				}
				lite, err := sqlite.Open(ctx, cfg.SQLite.Path)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "sqlite schema up to date at %s\n", cfg.SQLite.Path)
				return lite.Close()

			default:
				fmt.Fprintf(os.Stderr, "store backend %q has no schema\n", cfg.Store.Backend)
				return nil
			}
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "roll back this many migrations (postgres only)")
	cmd.Flags().BoolVar(&status, "status", false, "only report the current version")
	return cmd
}
