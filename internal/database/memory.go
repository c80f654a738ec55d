package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

const memoryStateRow = 1

// ═══════════════════════════════════════════════════════════════════════════════
// TRADE MEMORY OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// SaveTrade writes the outcome and the accumulator snapshot in one transaction.
func (d *Database) SaveTrade(ctx context.Context, outcome *types.TradeOutcome, state *memory.State) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal memory state: %w", err)
	}
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := tradeOutcomeRecord(outcome)
		// a retried write may already be on disk
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
			return fmt.Errorf("save trade outcome %s: %w", outcome.ID, err)
		}
		row := &MemoryStateRecord{
			ID:            memoryStateRow,
			SchemaVersion: MemoryStateVersion,
			Blob:          string(blob),
			UpdatedAt:     time.Now(),
		}
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("save memory state: %w", err)
		}
		return nil
	})
}

// SavePatterns upserts Tier 2 patterns.
func (d *Database) SavePatterns(ctx context.Context, patterns []types.PatternMemory) error {
	if len(patterns) == 0 {
		return nil
	}
	recs := make([]*PatternRecord, 0, len(patterns))
	for _, p := range patterns {
		recs = append(recs, patternRecord(p))
	}
	if err := d.db.WithContext(ctx).Save(recs).Error; err != nil {
		return fmt.Errorf("save patterns: %w", err)
	}
	return nil
}

// LoadMemory returns the newest hotLimit outcomes (oldest first), every
// pattern and the latest accumulator snapshot. The snapshot is nil when none
// was ever written.
func (d *Database) LoadMemory(ctx context.Context, hotLimit int) ([]types.TradeOutcome, []types.PatternMemory, *memory.State, error) {
	db := d.db.WithContext(ctx)

	var outRecs []TradeOutcomeRecord
	if err := db.Order("closed_at DESC").Limit(hotLimit).Find(&outRecs).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("load trade outcomes: %w", err)
	}
	outcomes := make([]types.TradeOutcome, len(outRecs))
	for i := range outRecs {
		outcomes[len(outRecs)-1-i] = outRecs[i].toOutcome()
	}

	var patRecs []PatternRecord
	if err := db.Order("created_at ASC").Find(&patRecs).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("load patterns: %w", err)
	}
	patterns := make([]types.PatternMemory, 0, len(patRecs))
	for i := range patRecs {
		patterns = append(patterns, patRecs[i].toPattern())
	}

	var row MemoryStateRecord
	err := db.First(&row, "id = ?", memoryStateRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return outcomes, patterns, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load memory state: %w", err)
	}
	if row.SchemaVersion > MemoryStateVersion {
		log.Warn().
			Int("schema_version", row.SchemaVersion).
			Int("supported", MemoryStateVersion).
			Msg("⚠️ Memory state written by a newer version, unknown fields ignored")
	}

	// missing fields keep their zero value and are repaired by the caller
	state := &memory.State{}
	if row.Blob != "" {
		if err := json.Unmarshal([]byte(row.Blob), state); err != nil {
			return nil, nil, nil, fmt.Errorf("decode memory state: %w", err)
		}
	}
	return outcomes, patterns, state, nil
}

// CountTrades returns the number of persisted outcomes.
func (d *Database) CountTrades(ctx context.Context) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&TradeOutcomeRecord{}).Count(&n).Error
	return n, err
}
