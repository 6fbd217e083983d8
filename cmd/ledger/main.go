package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

var (
	version = "dev"

	envFile string
	cfg     *config.Config
	logger  *log.Logger

	rootCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Personal-finance transaction ledger",
		Long: `ledger records income and expense transactions per user and serves
them over a JSON HTTP API with per-user summaries.

Configuration is read from the environment (and an optional .env file).`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := cli.SignalContext(context.Background(), nil)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	if err := cli.LoadEnvFile(envFile); err != nil {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	loaded, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	cfg = loaded
	logger = cli.SetupLogger(cfg, os.Stdout)
	return nil
}
