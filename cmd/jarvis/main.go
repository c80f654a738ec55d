// Jarvis - Swap router and position risk engine for Solana tokens
//
// Buys route through bags.fm with Jupiter as the single fallback venue.
// Every open position is watched by a periodic exit monitor:
// 1. Refresh the token price (quoted in SOL)
// 2. Check take-profit, stop-loss and trailing stop thresholds
// 3. Alert via Telegram, and sell automatically when auto-exit is on
// 4. Record the closed trade into trade memory for future recommendations
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/cmd/jarvis/cmd"
)

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
