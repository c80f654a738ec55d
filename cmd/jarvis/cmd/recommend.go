package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/database"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
)

var (
	recRegime    string
	recSentiment float64
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <signal-type>",
	Short: "Ask trade memory whether to take a signal",
	Long: `Query trade memory for a recommendation on a signal type, optionally
conditioned on the market regime and a sentiment score.

Examples:
  jarvis recommend breakout
  jarvis recommend breakout --regime bull --sentiment 0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringVar(&recRegime, "regime", "", "market regime (e.g. bull, bear, sideways)")
	recommendCmd.Flags().Float64Var(&recSentiment, "sentiment", 0, "sentiment score in [-1, 1]")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	mem := memory.New(memory.WithStore(db))
	if err := mem.Load(ctx); err != nil {
		return err
	}

	stats := mem.Stats()
	fmt.Printf("Trade memory: %d trades, %.1f%% win rate, %d patterns\n",
		stats.TotalTrades, stats.WinRate*100, stats.Patterns)
	if stats.OptimalExitMinutes > 0 {
		fmt.Printf("Optimal exit: %.0f min\n", stats.OptimalExitMinutes)
	}
	fmt.Println()

	rec := mem.Recommend(args[0], recRegime, recSentiment)
	fmt.Printf("%s  (confidence %.0f%%)\n", rec.Action, rec.Confidence*100)
	fmt.Printf("Expected return: %+.2f%%\n", rec.ExpectedReturn)
	if rec.SuggestedHoldMinutes > 0 {
		fmt.Printf("Suggested hold:  %.0f min\n", rec.SuggestedHoldMinutes)
	}
	if len(rec.Reasons) > 0 {
		fmt.Println("\nReasons:\n  + " + strings.Join(rec.Reasons, "\n  + "))
	}
	if len(rec.Warnings) > 0 {
		fmt.Println("\nWarnings:\n  ! " + strings.Join(rec.Warnings, "\n  ! "))
	}
	return nil
}
