package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/bot"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/monitor"
)

const shutdownTimeout = 15 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the position monitor, Telegram bot and metrics server",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	log.Info().
		Str("version", version).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Jarvis starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start")
		return err
	}
	defer a.close()

	opts := []monitor.Option{
		monitor.WithMemoryFlusher(a.memory),
		monitor.WithMetrics(a.metrics),
	}

	// ====== TELEGRAM BOT ======
	var telegramBot *bot.Bot
	if cfg.TelegramEnabled() {
		telegramBot, err = bot.New(cfg.TelegramToken, cfg.TelegramChatID, bot.Deps{
			Positions:  a.store,
			Thresholds: a.store,
			Trader:     a.trades,
			Exits:      a.exits,
			Kill:       a.killSwitch,
			Advisor:    a.memory,
		})
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram unavailable - alerts go to the log only")
		} else {
			opts = append(opts, monitor.WithSink(telegramBot))
			telegramBot.Start(ctx)
		}
	} else {
		log.Warn().Msg("⚠️ No TELEGRAM_BOT_TOKEN - alerts go to the log only")
	}

	// ====== MONITOR ======
	mon := monitor.New(a.store, a.prices, a.exits, monitor.Config{
		Interval:     cfg.MonitorInterval,
		PriceTimeout: cfg.VenueTimeout,
	}, opts...)
	if err := mon.Start(ctx); err != nil {
		return err
	}

	// ====== METRICS SERVER ======
	var server *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(a.registry))
		server = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("📊 Metrics server listening")
	}

	// ====== STARTUP COMPLETE ======
	log.Info().Msg("✅ All systems online")
	log.Info().Msg("")
	log.Info().Msg("╔══════════════════════════════════════════╗")
	log.Info().Msg("║        POSITION RISK ENGINE ACTIVE       ║")
	log.Info().Msg("║                                          ║")
	log.Info().Msgf("║  Open positions: %-23d ║", a.store.OpenCount())
	log.Info().Msgf("║  Monitor every:  %-23s ║", cfg.MonitorInterval)
	log.Info().Msgf("║  Auto-exit:      %-23t ║", a.exits.AutoExecute())
	log.Info().Msg("║  Venues: bags.fm → Jupiter fallback      ║")
	log.Info().Msg("╚══════════════════════════════════════════╝")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	// Both drain in-flight work before the deferred a.close() closes the database.
	mon.Stop(stopCtx)
	if telegramBot != nil {
		telegramBot.Stop()
	}
	if server != nil {
		if err := server.Shutdown(stopCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown")
		}
	}

	log.Info().Msg("👋 Goodbye!")
	return nil
}
