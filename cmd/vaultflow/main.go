package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultflow",
		Short:        "Lotus vault workflow driver for Sui",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("rpc", "", "Sui fullnode RPC URL")
	root.PersistentFlags().String("hermes", "", "Pyth Hermes price service URL")
	root.PersistentFlags().Uint64("gas-budget", 100_000_000, "gas budget per transaction")
	root.PersistentFlags().Duration("settle-timeout", 10*time.Second, "wait for each commit to be indexed, 0 disables")
	root.PersistentFlags().String("journal", "./data/workflows.jsonl", "workflow journal JSONL path")
	root.PersistentFlags().String("session", "./data/session.json", "session file path")
	root.PersistentFlags().String("postgres-dsn", "", "Postgres DSN for journal and session, overrides the files")
	root.PersistentFlags().String("env-file", ".env", "file with PRIVATE_KEY and PRIVATE_KEY_DELEGATE")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the full vault lifecycle walkthrough",
		RunE:  runDemo,
	}
	demoCmd.Flags().Bool("simulate", false, "run against an in-memory ledger instead of the network")
	demoCmd.Flags().Duration("pause", time.Second, "pause between steps")
	root.AddCommand(demoCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the saved vault's incentive value and open orders",
		RunE:  runInspect,
	}
	root.AddCommand(inspectCmd)

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the workflow journal",
		RunE:  runJournal,
	}
	journalCmd.Flags().Int("limit", 50, "maximum records to print")
	root.AddCommand(journalCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
