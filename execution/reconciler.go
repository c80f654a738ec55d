package execution

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RECONCILIATION - Startup position recovery
// ═══════════════════════════════════════════════════════════════════════════════
//
// On startup:
// 1. Load open positions and their trailing stops from the database
// 2. Seed the position store so the monitor resumes tracking them
// 3. Restore trade memory (hot set, patterns, accumulators)
//
// This prevents "ghost positions" after crashes
//
// ═══════════════════════════════════════════════════════════════════════════════

// PositionSource loads persisted positions.
type PositionSource interface {
	LoadOpenPositions(ctx context.Context) ([]*types.Position, error)
	LoadTrailingStops(ctx context.Context) ([]*types.TrailingStop, error)
}

// MemoryLoader restores trade memory. *memory.TradeMemory implements it.
type MemoryLoader interface {
	Load(ctx context.Context) error
}

// Reconciler handles startup recovery
type Reconciler struct {
	source PositionSource
	store  *positions.Store
	memory MemoryLoader
}

// NewReconciler creates a reconciler. source and memory may be nil.
func NewReconciler(source PositionSource, store *positions.Store, memory MemoryLoader) *Reconciler {
	return &Reconciler{
		source: source,
		store:  store,
		memory: memory,
	}
}

// Recover loads persisted state and returns the number of open positions restored.
func (r *Reconciler) Recover(ctx context.Context) (int, error) {
	if r.memory != nil {
		if err := r.memory.Load(ctx); err != nil {
			return 0, err
		}
	}

	if r.source == nil {
		log.Info().Msg("📦 No database - skipping position recovery")
		return 0, nil
	}

	open, err := r.source.LoadOpenPositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("❌ Failed to load persisted positions")
		return 0, fmt.Errorf("load positions: %w", err)
	}
	if len(open) == 0 {
		log.Info().Msg("📦 No persisted positions to recover")
		return 0, nil
	}

	stops, err := r.source.LoadTrailingStops(ctx)
	if err != nil {
		return 0, fmt.Errorf("load trailing stops: %w", err)
	}

	recovered := r.store.Load(open, stops)
	for _, pos := range open {
		log.Warn().
			Str("id", pos.ID).
			Str("token", pos.TokenSymbol).
			Str("amount", pos.Amount.String()).
			Str("entry", pos.EntryPrice.String()).
			Time("opened_at", pos.OpenedAt).
			Msg("📥 Recovered position")
	}

	log.Info().
		Int("recovered", recovered).
		Int("trailing_stops", len(stops)).
		Msg("✅ Position recovery complete")
	return recovered, nil
}
