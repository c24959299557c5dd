package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StockSentinel/internal/config"
	"StockSentinel/internal/logging"
	"StockSentinel/internal/metrics"
)

var (
	configPath string
	envPath    string

	cfg       *config.Config
	logCloser io.Closer
)

// rootCmd is the base command for the screener CLI.
var rootCmd = &cobra.Command{
	Use:   "screener",
	Short: "A-share screening pipeline and intraday monitor",
	Long: `screener filters the A-share market snapshot, scores the shortlist on
daily bars (trend, upper shadow, volume surge) and derives a trading plan.

Modes:
  screener screen     # fetch the live snapshot and screen it
  screener replay     # rescore bar CSVs already on disk, no network
  screener monitor    # poll one symbol's real-time quote
  screener serve      # cron screening, Telegram commands and /metrics`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envPath); err != nil {
			return err
		}
		if v := os.Getenv("CONFIG_PATH"); v != "" && !cmd.Flags().Changed("config") {
			configPath = v
		}
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		closer, err := logging.Setup(c.Log)
		if err != nil {
			return err
		}
		cfg, logCloser = c, closer
		metrics.Register()
		log.Debug().Str("config", configPath).Msg("configuration loaded")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Path to an optional .env file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
