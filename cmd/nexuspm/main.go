// Command nexuspm runs the NexusPM pipeline server and its maintenance tasks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Strob0t/NexusPM/internal/config"
	"github.com/Strob0t/NexusPM/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "nexuspm",
	Short:         "NexusPM turns team chat and design feedback into reviewed ticket changes",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "YAML config file (optional)")
	rootCmd.AddCommand(serveCmd(), migrateCmd(), adminCmd(), runsCmd(), projectsCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config hierarchy and installs the process logger.
// The returned Closer flushes async log records.
func loadConfig() (*config.Config, logger.Closer, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, closer, nil
}
