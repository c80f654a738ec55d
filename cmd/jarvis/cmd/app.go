package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/execution"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/config"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/database"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/pricing"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/venue"
)

// app holds every wired component of one process.
type app struct {
	cfg *config.Config

	db       *database.Database
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	prices     *pricing.Service
	killSwitch *risk.KillSwitch
	router     *execution.SwapRouter
	store      *positions.Store
	memory     *memory.TradeMemory
	trades     *execution.TradeService
	exits      *execution.ExitExecutor
}

// newApp wires config → venues → pricing → router → store → memory →
// trade service → exit executor, then restores persisted state.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// ====== DATABASE ======
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a.db = db

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.Ping(pingCtx)
	pingCancel()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	// ====== METRICS ======
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	// ====== VENUES ======
	var signer venue.Signer = venue.PaperSigner{}
	if !cfg.DryRun {
		signer = venue.NewRemoteSigner(cfg.SignerURL, venue.WithAPIKey(cfg.SignerAPIKey), venue.WithTimeout(cfg.VenueTimeout))
	}
	primary := venue.NewBagsClient(cfg.BagsAPIURL, signer,
		venue.WithAPIKey(cfg.BagsAPIKey), venue.WithTimeout(cfg.VenueTimeout))
	fallback := venue.NewJupiterClient(cfg.JupiterAPIURL, cfg.JupiterPriceURL, signer,
		venue.WithTimeout(cfg.VenueTimeout))

	// ====== PRICING ======
	a.prices = pricing.NewService(fallback, pricing.NewRPCClient(cfg.SolanaRPCURL, cfg.VenueTimeout))

	// ====== ROUTER ======
	a.killSwitch = risk.NewKillSwitch(cfg.MaxConsecutiveLosses, cfg.KillSwitchCooldown)
	a.router = execution.NewSwapRouter(primary, fallback, a.prices,
		execution.WithKillSwitch(a.killSwitch),
		execution.WithMetrics(a.metrics),
		execution.WithCallTimeout(cfg.VenueTimeout),
		execution.WithDefaultSlippage(cfg.DefaultSlippageBps),
	)

	// ====== POSITIONS & MEMORY ======
	a.store = positions.NewStore(db)
	a.memory = memory.New(memory.WithStore(db), memory.WithMetrics(a.metrics))

	a.trades = execution.NewTradeService(a.router, a.store, a.prices, execution.TradeConfig{
		WalletAddress: cfg.WalletAddress,
		SlippageBps:   cfg.DefaultSlippageBps,
		AllowFallback: true,
	}, execution.WithRecorder(a.memory), execution.WithCloseObserver(a.killSwitch))
	a.exits = execution.NewExitExecutor(a.trades, a.store, cfg.AutoExecuteExits, a.metrics)

	// ====== RECOVERY ======
	if _, err := execution.NewReconciler(db, a.store, a.memory).Recover(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("recover state: %w", err)
	}

	log.Info().
		Bool("dry_run", cfg.DryRun).
		Str("primary", primary.Name()).
		Str("fallback", fallback.Name()).
		Bool("auto_exit", cfg.AutoExecuteExits).
		Msg("🔧 Components wired")
	return a, nil
}

// close flushes pending writes and releases the database.
func (a *app) close() {
	ctx := context.Background()
	if n := a.store.FlushDirty(ctx); n > 0 {
		log.Info().Int("flushed", n).Msg("💾 Flushed pending position writes")
	}
	if n := a.memory.Flush(ctx); n > 0 {
		log.Info().Int("flushed", n).Msg("💾 Flushed pending memory writes")
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
