package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "server",
		Short: "Personal finance analytics service",
		Long: `Serves spending forecasts, budget recommendations, anomaly reports and
expense category predictions over Connect RPC and the legacy REST routes.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	// Serving is the default when no subcommand is given.
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(evictCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		loaded.Logging.Format, _ = flags.GetString("log-format")
	}

	if _, err := logging.Setup(loaded.Logging.Level, loaded.Logging.Format); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.Debug("configuration loaded",
		"store", loaded.Store.Backend,
		"cache", loaded.Cache.Backend,
		"classifier", loaded.Classifier.Strategy,
	)
	cfg = loaded
	return nil
}
