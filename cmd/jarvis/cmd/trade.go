package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/execution"
)

var buyFlags struct {
	symbol     string
	tp         string
	sl         string
	trail      string
	slippage   int
	noFallback bool
	signal     string
	regime     string
	sentiment  float64
}

var buyCmd = &cobra.Command{
	Use:   "buy <mint> <amount-sol>",
	Short: "Open a position by swapping SOL into a token",
	Long: `Swap SOL into a token and open a tracked position with take-profit,
stop-loss and an optional trailing stop. The position is persisted and picked
up by the next "jarvis run".

Examples:
  jarvis buy <mint> 0.5
  jarvis buy <mint> 0.5 --tp 80 --sl 15 --trail 10 --signal breakout --regime bull`,
	Args: cobra.ExactArgs(2),
	RunE: runBuy,
}

var sellCmd = &cobra.Command{
	Use:   "sell <position-id> [percent]",
	Short: "Sell part or all of a position",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSell,
}

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)

	f := buyCmd.Flags()
	f.StringVar(&buyFlags.symbol, "symbol", "", "token symbol for display")
	f.StringVar(&buyFlags.tp, "tp", "", "take-profit percent (default DEFAULT_TP_PERCENT)")
	f.StringVar(&buyFlags.sl, "sl", "", "stop-loss percent (default DEFAULT_SL_PERCENT)")
	f.StringVar(&buyFlags.trail, "trail", "", "trailing stop percent, 0 disables (default DEFAULT_TRAIL_PERCENT)")
	f.IntVar(&buyFlags.slippage, "slippage", 0, "slippage in bps (default DEFAULT_SLIPPAGE_BPS)")
	f.BoolVar(&buyFlags.noFallback, "no-fallback", false, "fail instead of retrying on the fallback venue")
	f.StringVar(&buyFlags.signal, "signal", "", "signal type that triggered the entry")
	f.StringVar(&buyFlags.regime, "regime", "", "market regime at entry")
	f.Float64Var(&buyFlags.sentiment, "sentiment", 0, "sentiment score at entry")
}

func runBuy(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	tp, err := decimalFlag(buyFlags.tp, cfg.DefaultTPPercent)
	if err != nil {
		return fmt.Errorf("invalid --tp: %w", err)
	}
	sl, err := decimalFlag(buyFlags.sl, cfg.DefaultSLPercent)
	if err != nil {
		return fmt.Errorf("invalid --sl: %w", err)
	}
	trail, err := decimalFlag(buyFlags.trail, cfg.DefaultTrailPercent)
	if err != nil {
		return fmt.Errorf("invalid --trail: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	pos, result, err := a.trades.Buy(ctx, execution.BuyRequest{
		TokenAddress:    args[0],
		TokenSymbol:     buyFlags.symbol,
		AmountSol:       amount,
		TPPercent:       tp,
		SLPercent:       sl,
		TrailPercent:    trail,
		SlippageBps:     buyFlags.slippage,
		DisableFallback: buyFlags.noFallback,
		SignalType:      buyFlags.signal,
		MarketRegime:    buyFlags.regime,
		SentimentScore:  buyFlags.sentiment,
	})
	if err != nil {
		return userFacing(err)
	}

	fmt.Printf("Opened %s via %s (%s)\n", pos.ID, result.Venue, result.Source)
	fmt.Printf("  tx:     %s\n", result.TxRef)
	fmt.Printf("  amount: %s tokens for %s SOL\n", pos.Amount, pos.AmountBase)
	fmt.Printf("  entry:  %s SOL\n", pos.EntryPrice)
	fmt.Printf("  TP:     %s (+%s%%)\n", pos.TPPrice, pos.TPPercent)
	fmt.Printf("  SL:     %s (-%s%%)\n", pos.SLPrice, pos.SLPercent)
	return nil
}

func runSell(cmd *cobra.Command, args []string) error {
	percent := decimal.NewFromInt(100)
	if len(args) == 2 {
		p, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid percent %q: %w", args[1], err)
		}
		percent = p
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.trades.Sell(ctx, args[0], percent)
	if err != nil {
		return userFacing(err)
	}
	fmt.Printf("Sold %s%% of %s via %s (%s), tx %s\n", percent, args[0], result.Venue, result.Source, result.TxRef)
	return nil
}

func decimalFlag(v string, def decimal.Decimal) (decimal.Decimal, error) {
	if v == "" {
		return def, nil
	}
	return decimal.NewFromString(v)
}

// userFacing swaps a trading error for its fixed message, keeping the code.
func userFacing(err error) error {
	var te *execution.TradingError
	if errors.As(err, &te) {
		return fmt.Errorf("%s: %s", te.Code, te.UserMessage())
	}
	return err
}
