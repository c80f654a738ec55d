package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

func alertFor(t *testing.T, h *harness, id string, price string) types.Alert {
	t.Helper()
	require.NoError(t, h.store.UpdatePrice(context.Background(), id, dec(price)))
	positions := h.store.ListOpen()
	alerts := risk.NewExitTriggerEngine().Evaluate(positions, h.store.TrailingStops())
	h.store.ApplyEvaluation(context.Background(), positions, nil)
	require.Len(t, alerts, 1)
	return alerts[0]
}

func TestMaybeExecuteExit_Disabled(t *testing.T) {
	h := newHarness(t, "0.0016")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	exits := NewExitExecutor(h.svc, h.store, false, nil)
	alert := alertFor(t, h, pos.ID, "0.0016")
	assert.Equal(t, types.AlertTakeProfit, alert.Type)

	executed, err := exits.MaybeExecuteExit(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Equal(t, 1, h.swapper.count(), "no sell attempted")

	pending := exits.PendingManual()
	require.Len(t, pending, 1)
	assert.Equal(t, pos.ID, pending[0].Position.ID)

	// manual sell resolves the pending alert
	_, err = h.svc.Sell(context.Background(), pos.ID, dec("100"))
	require.NoError(t, err)
	assert.Empty(t, exits.PendingManual())
}

func TestMaybeExecuteExit_Enabled(t *testing.T) {
	h := newHarness(t, "0.0016")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	exits := NewExitExecutor(h.svc, h.store, true, nil)
	alert := alertFor(t, h, pos.ID, "0.0016")

	executed, err := exits.MaybeExecuteExit(context.Background(), alert)
	require.NoError(t, err)
	assert.True(t, executed)

	closed, _, err := h.store.Get(pos.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PositionClosed, closed.Status)
	assert.NotEmpty(t, closed.ExitTxRef)
	assert.Equal(t, types.SourcePrimary, closed.ExitSource)
	assert.Equal(t, string(types.AlertTakeProfit), closed.ExitReason)
	assert.True(t, closed.TPTriggered)

	// a duplicate alert for an already closed position is a no-op
	executed, err = exits.MaybeExecuteExit(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Equal(t, 2, h.swapper.count())
}

func TestMaybeExecuteExit_FailureIsParkedNotRetried(t *testing.T) {
	h := newHarness(t, "0.0005")
	pos, _, err := h.svc.Buy(context.Background(), validBuy())
	require.NoError(t, err)

	exits := NewExitExecutor(h.svc, h.store, true, nil)
	alert := alertFor(t, h, pos.ID, "0.0005")
	assert.Equal(t, types.AlertStopLoss, alert.Type)

	h.swapper.err = &TradingError{Code: CodeBothVenuesFailed, Reason: CodeNoRouteFound}
	executed, err := exits.MaybeExecuteExit(context.Background(), alert)
	assert.False(t, executed)
	assert.Equal(t, CodeBothVenuesFailed, CodeOf(err))
	assert.Equal(t, 2, h.swapper.count(), "exactly one exit attempt")

	still, _, _ := h.store.Get(pos.ID)
	assert.True(t, still.IsOpen())
	assert.True(t, still.SLTriggered)
	require.Len(t, exits.PendingManual(), 1)

	// the latch keeps the engine from alerting again
	positions := h.store.ListOpen()
	assert.Empty(t, risk.NewExitTriggerEngine().Evaluate(positions, nil))
}

func TestExitExecutor_Toggle(t *testing.T) {
	exits := NewExitExecutor(nil, nil, false, nil)
	assert.False(t, exits.AutoExecute())
	exits.SetAutoExecute(true)
	assert.True(t, exits.AutoExecute())

	_, err := exits.MaybeExecuteExit(context.Background(), types.Alert{CreatedAt: time.Now()})
	assert.Error(t, err)
}
