package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/config"
)

var (
	cfg       *config.Config
	debugFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "jarvis",
	Short: "Swap router and position risk engine for Solana tokens",
	Long: `Jarvis executes token swaps through a primary venue with a single
fallback, watches every open position for take-profit, stop-loss and
trailing stop exits, and learns from closed trades.

Configuration is read from the environment (and .env if present).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if cfg.Debug || debugFlag {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}
