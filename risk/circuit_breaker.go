package risk

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/memory"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// KILL SWITCH - Emergency shutdown for new entries
// ═══════════════════════════════════════════════════════════════════════════════
//
// Trips on N consecutive losing closes or on a manual Trip. While tripped,
// buys are refused. Sells are never blocked so positions can be unwound.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrKillSwitchActive is returned by Check while the switch is tripped
var ErrKillSwitchActive = errors.New("kill switch active")

// KillSwitch is an explicitly owned circuit breaker
type KillSwitch struct {
	mu sync.RWMutex

	// Configuration
	maxConsecutiveLosses int
	cooldownDuration     time.Duration // zero means manual reset only

	// State
	consecutiveLosses int
	tripped           bool
	trippedAt         time.Time
	reason            string

	now func() time.Time
}

// NewKillSwitch creates a kill switch. maxLosses <= 0 disables the loss trigger.
func NewKillSwitch(maxLosses int, cooldown time.Duration) *KillSwitch {
	return &KillSwitch{
		maxConsecutiveLosses: maxLosses,
		cooldownDuration:     cooldown,
		now:                  time.Now,
	}
}

// Check returns ErrKillSwitchActive (wrapped with the reason) while tripped.
func (ks *KillSwitch) Check() error {
	if ks == nil {
		return nil
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if !ks.tripped {
		return nil
	}
	if ks.cooldownDuration > 0 && ks.now().Sub(ks.trippedAt) > ks.cooldownDuration {
		ks.reset()
		log.Info().Msg("✅ Kill switch reset after cooldown")
		return nil
	}
	return fmt.Errorf("%w: %s", ErrKillSwitchActive, ks.reason)
}

// RecordClose feeds a closed trade's PnL percent, classified the same way
// trade memory classifies it. A BREAKEVEN close leaves the streak as is.
func (ks *KillSwitch) RecordClose(pnlPercent float64) {
	switch memory.Classify(pnlPercent) {
	case types.OutcomeLoss:
		ks.RecordLoss()
	case types.OutcomeWin:
		ks.RecordWin()
	}
}

// RecordLoss records a losing close
func (ks *KillSwitch) RecordLoss() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.consecutiveLosses++
	if ks.maxConsecutiveLosses > 0 && ks.consecutiveLosses >= ks.maxConsecutiveLosses && !ks.tripped {
		ks.trip("max consecutive losses")
	}
}

// RecordWin resets the loss streak
func (ks *KillSwitch) RecordWin() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.consecutiveLosses = 0
}

// Trip activates the switch manually
func (ks *KillSwitch) Trip(reason string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.trip(reason)
}

func (ks *KillSwitch) trip(reason string) {
	ks.tripped = true
	ks.trippedAt = ks.now()
	ks.reason = reason
	log.Warn().
		Str("reason", reason).
		Int("consecutive_losses", ks.consecutiveLosses).
		Dur("cooldown", ks.cooldownDuration).
		Msg("🚨 KILL SWITCH TRIPPED")
}

func (ks *KillSwitch) reset() {
	ks.consecutiveLosses = 0
	ks.tripped = false
	ks.reason = ""
}

// IsTripped returns current trip state without applying the cooldown
func (ks *KillSwitch) IsTripped() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.tripped
}

// Stats returns kill switch state
func (ks *KillSwitch) Stats() (consecutiveLosses int, tripped bool, reason string) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.consecutiveLosses, ks.tripped, ks.reason
}

// Reset manually clears the switch
func (ks *KillSwitch) Reset() {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.reset()
	log.Info().Msg("Kill switch manually reset")
}
