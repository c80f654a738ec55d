package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/database"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

var closedLimit int

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List open positions from the database",
	Long: `List persisted positions.

Examples:
  jarvis positions
  jarvis positions --closed 20`,
	Args: cobra.NoArgs,
	RunE: runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().IntVar(&closedLimit, "closed", 0, "also list the N most recently closed positions")
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	open, err := db.LoadOpenPositions(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOKEN\tENTRY\tCURRENT\tPNL%\tTP\tSL\tTP_HIT\tSL_HIT\tVENUE")
	for _, p := range open {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			p.ID, tokenLabel(p), p.EntryPrice, p.CurrentPrice, p.PnLPercent().StringFixed(2),
			p.TPPrice, p.SLPrice, p.TPTriggered, p.SLTriggered, p.Venue)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d open position(s)\n", len(open))

	if closedLimit <= 0 {
		return nil
	}
	closed, err := db.GetRecentClosedPositions(ctx, closedLimit)
	if err != nil {
		return err
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOKEN\tENTRY\tEXIT\tPNL%\tREASON\tSOURCE\tCLOSED")
	for _, p := range closed {
		closedAt := ""
		if p.ClosedAt != nil {
			closedAt = p.ClosedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, tokenLabel(p), p.EntryPrice, p.ExitPrice,
			types.PercentChange(p.EntryPrice, p.ExitPrice).StringFixed(2),
			p.ExitReason, p.ExitSource, closedAt)
	}
	return w.Flush()
}

func tokenLabel(p *types.Position) string {
	if p.TokenSymbol != "" {
		return p.TokenSymbol
	}
	return p.TokenAddress
}
