package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// AUTO-EXIT EXECUTOR
// ═══════════════════════════════════════════════════════════════════════════════
//
// One attempt per alert. A failed exit is parked for manual action and never
// retried: the price that triggered it has moved by the next pass.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ExitExecutor turns exit alerts into full sells when auto-execute is on.
type ExitExecutor struct {
	trades  *TradeService
	store   *positions.Store
	metrics *metrics.Metrics

	autoExecute atomic.Bool

	mu      sync.Mutex
	pending map[string]types.Alert
}

// NewExitExecutor creates an executor
func NewExitExecutor(trades *TradeService, store *positions.Store, autoExecute bool, m *metrics.Metrics) *ExitExecutor {
	e := &ExitExecutor{
		trades:  trades,
		store:   store,
		metrics: m,
		pending: make(map[string]types.Alert),
	}
	e.autoExecute.Store(autoExecute)
	return e
}

// SetAutoExecute toggles automatic exits
func (e *ExitExecutor) SetAutoExecute(on bool) {
	e.autoExecute.Store(on)
	log.Info().Bool("auto_execute", on).Msg("⚙️ Auto-exit toggled")
}

// AutoExecute reports the toggle
func (e *ExitExecutor) AutoExecute() bool {
	return e.autoExecute.Load()
}

// MaybeExecuteExit sells the alerted position in full when auto-execute is on.
// It returns executed=false with a nil error when the toggle is off or the
// position was already closed by another path.
func (e *ExitExecutor) MaybeExecuteExit(ctx context.Context, alert types.Alert) (bool, error) {
	if alert.Position == nil {
		return false, errors.New("alert has no position")
	}
	posID := alert.Position.ID

	if !e.AutoExecute() {
		e.park(alert)
		e.metrics.IncExit("skipped")
		return false, nil
	}

	_, err := e.trades.sell(ctx, posID, hundred, string(alert.Type))
	switch {
	case err == nil:
		e.resolve(posID)
		e.metrics.IncExit("executed")
		log.Info().
			Str("id", posID).
			Str("type", string(alert.Type)).
			Msg("✅ Auto-exit executed")
		return true, nil

	case errors.Is(err, positions.ErrAlreadyClosed), errors.Is(err, positions.ErrNotFound):
		e.resolve(posID)
		return false, nil

	default:
		e.park(alert)
		e.metrics.IncExit("failed")
		log.Error().
			Err(err).
			Str("id", posID).
			Str("type", string(alert.Type)).
			Msg("❌ Auto-exit failed, manual action required")
		return false, err
	}
}

func (e *ExitExecutor) park(alert types.Alert) {
	e.mu.Lock()
	e.pending[alert.Position.ID] = alert
	e.mu.Unlock()
}

func (e *ExitExecutor) resolve(positionID string) {
	e.mu.Lock()
	delete(e.pending, positionID)
	e.mu.Unlock()
}

// PendingManual returns alerts still awaiting a manual sell. Alerts whose
// position has since been closed are dropped.
func (e *ExitExecutor) PendingManual() []types.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.Alert, 0, len(e.pending))
	for id, alert := range e.pending {
		pos, _, err := e.store.Get(id)
		if err != nil || !pos.IsOpen() {
			delete(e.pending, id)
			continue
		}
		out = append(out, alert)
	}
	return out
}
