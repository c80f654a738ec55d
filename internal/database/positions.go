package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// Position operations

// SavePosition upserts a position row.
func (d *Database) SavePosition(ctx context.Context, pos *types.Position) error {
	rec := positionRecord(pos)
	rec.UpdatedAt = time.Now()
	if err := d.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save position %s: %w", pos.ID, err)
	}
	return nil
}

// SaveTrailingStop upserts a trailing stop row.
func (d *Database) SaveTrailingStop(ctx context.Context, ts *types.TrailingStop) error {
	if err := d.db.WithContext(ctx).Save(trailingStopRecord(ts)).Error; err != nil {
		return fmt.Errorf("save trailing stop %s: %w", ts.PositionID, err)
	}
	return nil
}

// LoadOpenPositions returns every position not yet closed.
func (d *Database) LoadOpenPositions(ctx context.Context) ([]*types.Position, error) {
	var recs []PositionRecord
	err := d.db.WithContext(ctx).
		Where("status = ? OR status = ?", string(types.PositionOpen), "").
		Order("opened_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	out := make([]*types.Position, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toPosition())
	}
	return out, nil
}

// LoadTrailingStops returns the trailing stops of open positions.
func (d *Database) LoadTrailingStops(ctx context.Context) ([]*types.TrailingStop, error) {
	var recs []TrailingStopRecord
	err := d.db.WithContext(ctx).
		Select("trailing_stops.*").
		Joins("JOIN positions ON positions.id = trailing_stops.position_id").
		Where("positions.status = ? OR positions.status = ?", string(types.PositionOpen), "").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load trailing stops: %w", err)
	}
	out := make([]*types.TrailingStop, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toTrailingStop())
	}
	return out, nil
}

// GetPosition retrieves a single position by ID
func (d *Database) GetPosition(ctx context.Context, id string) (*types.Position, error) {
	var rec PositionRecord
	if err := d.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return rec.toPosition(), nil
}

// GetRecentClosedPositions gets recently closed positions
func (d *Database) GetRecentClosedPositions(ctx context.Context, limit int) ([]*types.Position, error) {
	var recs []PositionRecord
	err := d.db.WithContext(ctx).
		Where("status = ?", string(types.PositionClosed)).
		Order("closed_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]*types.Position, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toPosition())
	}
	return out, nil
}
