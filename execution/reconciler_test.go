package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

type fakeSource struct {
	open  []*types.Position
	stops []*types.TrailingStop
	err   error
}

func (f fakeSource) LoadOpenPositions(context.Context) ([]*types.Position, error) {
	return f.open, f.err
}

func (f fakeSource) LoadTrailingStops(context.Context) ([]*types.TrailingStop, error) {
	return f.stops, nil
}

type fakeLoader struct{ called bool }

func (f *fakeLoader) Load(context.Context) error {
	f.called = true
	return nil
}

func TestReconciler_Recover(t *testing.T) {
	pos := &types.Position{
		ID:         "pos_1",
		EntryPrice: dec("1"),
		TPPercent:  dec("50"),
		SLPercent:  dec("20"),
		Amount:     dec("10"),
	}
	pos.RecomputeThresholds()

	store := positions.NewStore(nil)
	loader := &fakeLoader{}
	r := NewReconciler(fakeSource{
		open:  []*types.Position{pos},
		stops: []*types.TrailingStop{types.NewTrailingStop("pos_1", dec("10"), dec("1.2"))},
	}, store, loader)

	n, err := r.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, loader.called)

	got, ts, err := store.Get("pos_1")
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	require.NotNil(t, ts)
	assert.True(t, ts.HighestPrice.Equal(dec("1.2")))
}

func TestReconciler_SourceError(t *testing.T) {
	r := NewReconciler(fakeSource{err: errors.New("no such table")}, positions.NewStore(nil), nil)
	_, err := r.Recover(context.Background())
	assert.Error(t, err)
}

func TestReconciler_NoSource(t *testing.T) {
	n, err := NewReconciler(nil, positions.NewStore(nil), nil).Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
