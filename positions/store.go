// Package positions holds the live position book.
//
// Every mutation of a single position runs under that position's own mutex,
// so a manual sell and an auto-exit for the same position serialize while
// unrelated positions proceed in parallel.
package positions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

var (
	ErrNotFound      = errors.New("position not found")
	ErrAlreadyClosed = errors.New("position already closed")
	ErrDuplicate     = errors.New("position already exists")
)

// Persister durably stores positions and their trailing stops.
type Persister interface {
	SavePosition(ctx context.Context, pos *types.Position) error
	SaveTrailingStop(ctx context.Context, ts *types.TrailingStop) error
}

// ExitInfo stamps a closing fill onto a position
type ExitInfo struct {
	TxRef  string
	Source string
	Price  decimal.Decimal
	Reason string
}

type entry struct {
	mu       sync.Mutex
	pos      *types.Position
	trailing *types.TrailingStop
}

// Store is the in-memory position book with write-through persistence.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	persister Persister

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	now func() time.Time
}

// NewStore creates a store. persister may be nil for a memory-only book.
func NewStore(persister Persister) *Store {
	return &Store{
		entries:   make(map[string]*entry),
		persister: persister,
		dirty:     make(map[string]struct{}),
		now:       time.Now,
	}
}

// Load seeds the book from durable storage on startup. It does not persist.
func (s *Store) Load(positions []*types.Position, stops []*types.TrailingStop) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range positions {
		if p == nil || p.ID == "" {
			continue
		}
		if p.Status == "" {
			p.Status = types.PositionOpen
		}
		s.entries[p.ID] = &entry{pos: p.Clone()}
	}
	for _, ts := range stops {
		if ts == nil {
			continue
		}
		if e, ok := s.entries[ts.PositionID]; ok {
			e.trailing = ts.Clone()
		}
	}
	return len(positions)
}

// Open inserts a new position and its optional trailing stop.
func (s *Store) Open(ctx context.Context, pos *types.Position, trailing *types.TrailingStop) error {
	if pos == nil || pos.ID == "" {
		return errors.New("position requires an id")
	}

	p := pos.Clone()
	p.Status = types.PositionOpen
	if p.OpenedAt.IsZero() {
		p.OpenedAt = s.now()
	}
	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = p.EntryPrice
	}
	p.RecomputeThresholds()

	e := &entry{pos: p}
	if trailing != nil {
		ts := trailing.Clone()
		ts.PositionID = p.ID
		e.trailing = ts
	}

	s.mu.Lock()
	if _, exists := s.entries[p.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicate
	}
	s.entries[p.ID] = e
	s.mu.Unlock()

	e.mu.Lock()
	s.persist(ctx, e)
	e.mu.Unlock()

	log.Info().
		Str("id", p.ID).
		Str("token", p.TokenSymbol).
		Str("entry", p.EntryPrice.String()).
		Str("tp", p.TPPrice.String()).
		Str("sl", p.SLPrice.String()).
		Bool("trailing", e.trailing != nil).
		Msg("📈 Position opened")
	return nil
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Get returns copies of a position and its trailing stop (nil if none).
func (s *Store) Get(id string) (*types.Position, *types.TrailingStop, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var ts *types.TrailingStop
	if e.trailing != nil {
		ts = e.trailing.Clone()
	}
	return e.pos.Clone(), ts, nil
}

func (s *Store) snapshot() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// ListOpen returns copies of every open position, in no particular order.
func (s *Store) ListOpen() []*types.Position {
	var out []*types.Position
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if e.pos.IsOpen() {
			out = append(out, e.pos.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

// TrailingStops returns copies of the trailing stops of open positions.
func (s *Store) TrailingStops() map[string]*types.TrailingStop {
	out := make(map[string]*types.TrailingStop)
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if e.pos.IsOpen() && e.trailing != nil {
			out[e.pos.ID] = e.trailing.Clone()
		}
		e.mu.Unlock()
	}
	return out
}

// OpenCount returns the number of open positions
func (s *Store) OpenCount() int {
	n := 0
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if e.pos.IsOpen() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Mutate runs fn on the live position under its lock and persists the
// result. Closed positions are rejected with ErrAlreadyClosed.
func (s *Store) Mutate(ctx context.Context, id string, fn func(pos *types.Position, ts *types.TrailingStop) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pos.IsOpen() {
		return ErrAlreadyClosed
	}
	if err := fn(e.pos, e.trailing); err != nil {
		return err
	}
	s.persist(ctx, e)
	return nil
}

// UpdatePrice records the latest observed price
func (s *Store) UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error {
	return s.Mutate(ctx, id, func(pos *types.Position, _ *types.TrailingStop) error {
		pos.CurrentPrice = price
		return nil
	})
}

// AdjustThresholds replaces TP/SL percents and recomputes their prices.
// Latches are left untouched.
func (s *Store) AdjustThresholds(ctx context.Context, id string, tpPercent, slPercent decimal.Decimal) error {
	if err := risk.ValidateThresholds(tpPercent, slPercent); err != nil {
		return err
	}
	return s.Mutate(ctx, id, func(pos *types.Position, _ *types.TrailingStop) error {
		pos.TPPercent = tpPercent
		pos.SLPercent = slPercent
		pos.RecomputeThresholds()
		log.Info().
			Str("id", id).
			Str("tp", pos.TPPrice.String()).
			Str("sl", pos.SLPrice.String()).
			Msg("🔧 Thresholds adjusted")
		return nil
	})
}

// ApplyEvaluation merges the outcome of an evaluation pass run on copies.
// Latches only ever move false→true and the trailing high only rises, so a
// position that was sold or adjusted concurrently is never rolled back.
func (s *Store) ApplyEvaluation(ctx context.Context, evaluated []*types.Position, stops map[string]*types.TrailingStop) {
	for _, ev := range evaluated {
		if ev == nil {
			continue
		}
		ts := stops[ev.ID]
		err := s.Mutate(ctx, ev.ID, func(pos *types.Position, live *types.TrailingStop) error {
			pos.TPTriggered = pos.TPTriggered || ev.TPTriggered
			pos.SLTriggered = pos.SLTriggered || ev.SLTriggered
			if ts != nil && live != nil {
				mergeTrailing(live, ts)
			}
			return nil
		})
		if err != nil && !errors.Is(err, ErrAlreadyClosed) && !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("id", ev.ID).Msg("Failed to apply evaluation")
		}
	}
}

func mergeTrailing(live, ev *types.TrailingStop) {
	if live.Triggered {
		return
	}
	if ev.HighestPrice.GreaterThan(live.HighestPrice) {
		live.HighestPrice = ev.HighestPrice
		live.RecomputeStop()
		live.UpdatedAt = ev.UpdatedAt
	}
	if ev.Triggered {
		live.Triggered = true
		live.Active = false
		live.UpdatedAt = ev.UpdatedAt
	}
}

// MarkClosed stamps exit data onto pos. Callers must hold the position lock
// (i.e. call it from inside Mutate).
func MarkClosed(pos *types.Position, ts *types.TrailingStop, info ExitInfo, at time.Time) {
	pos.Status = types.PositionClosed
	pos.ExitTxRef = info.TxRef
	pos.ExitSource = info.Source
	pos.ExitPrice = info.Price
	pos.ExitReason = info.Reason
	pos.ClosedAt = &at
	if ts != nil {
		ts.Active = false
	}
}

// Close marks a position closed. A second close returns ErrAlreadyClosed.
func (s *Store) Close(ctx context.Context, id string, info ExitInfo) (*types.Position, error) {
	var closed *types.Position
	err := s.Mutate(ctx, id, func(pos *types.Position, ts *types.TrailingStop) error {
		MarkClosed(pos, ts, info, s.now())
		closed = pos.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("id", id).
		Str("exit_tx", info.TxRef).
		Str("source", info.Source).
		Str("reason", info.Reason).
		Msg("📉 Position closed")
	return closed, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERSISTENCE
// ═══════════════════════════════════════════════════════════════════════════════

// persist writes e through; e.mu must be held. Failures keep the entry dirty.
func (s *Store) persist(ctx context.Context, e *entry) {
	if s.persister == nil {
		return
	}
	if err := s.save(ctx, e); err != nil {
		log.Warn().Err(err).Str("id", e.pos.ID).Msg("⚠️ Position write failed, will retry")
		s.markDirty(e.pos.ID)
		return
	}
	s.clearDirty(e.pos.ID)
}

func (s *Store) save(ctx context.Context, e *entry) error {
	if err := s.persister.SavePosition(ctx, e.pos); err != nil {
		return err
	}
	if e.trailing != nil {
		if err := s.persister.SaveTrailingStop(ctx, e.trailing); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) markDirty(id string) {
	s.dirtyMu.Lock()
	s.dirty[id] = struct{}{}
	s.dirtyMu.Unlock()
}

func (s *Store) clearDirty(id string) {
	s.dirtyMu.Lock()
	delete(s.dirty, id)
	s.dirtyMu.Unlock()
}

// DirtyCount returns how many positions await a successful write
func (s *Store) DirtyCount() int {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return len(s.dirty)
}

// FlushDirty retries every failed write and returns how many still fail.
func (s *Store) FlushDirty(ctx context.Context) int {
	if s.persister == nil {
		return 0
	}

	s.dirtyMu.Lock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.dirtyMu.Unlock()

	failed := 0
	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			s.clearDirty(id)
			continue
		}
		e.mu.Lock()
		if err := s.save(ctx, e); err != nil {
			failed++
			log.Warn().Err(err).Str("id", id).Msg("⚠️ Position flush failed")
		} else {
			s.clearDirty(id)
		}
		e.mu.Unlock()
	}
	return failed
}
