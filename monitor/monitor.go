// Package monitor runs the periodic exit pass: refresh prices, evaluate
// thresholds, notify, and hand alerts to the exit executor.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/internal/metrics"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/positions"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/risk"
	"github.com/Matt-Aurora-Ventures/Jarvis-sub003/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MONITOR - One pass per interval, never overlapping
// ═══════════════════════════════════════════════════════════════════════════════
//
//   flush dirty writes → refresh prices → Evaluate → alert sinks → auto-exit
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	DefaultInterval     = 30 * time.Second
	DefaultPriceTimeout = 5 * time.Second
)

// PriceSource returns the current price of a token in the native asset.
type PriceSource interface {
	GetPrice(ctx context.Context, mint string) (decimal.Decimal, error)
}

// AlertSink receives every exit alert. The chat layer implements it.
type AlertSink interface {
	NotifyAlert(ctx context.Context, alert types.Alert) error
}

// Exiter acts on alerts. *execution.ExitExecutor implements it.
type Exiter interface {
	MaybeExecuteExit(ctx context.Context, alert types.Alert) (bool, error)
}

// Flusher retries failed trade memory writes.
type Flusher interface {
	Flush(ctx context.Context) int
}

// Config holds monitor settings
type Config struct {
	Interval     time.Duration
	PriceTimeout time.Duration
}

// Option configures a Monitor
type Option func(*Monitor)

// WithSink adds an alert sink.
func WithSink(s AlertSink) Option {
	return func(m *Monitor) { m.sinks = append(m.sinks, s) }
}

// WithMemoryFlusher retries trade memory writes every pass.
func WithMemoryFlusher(f Flusher) Option {
	return func(m *Monitor) { m.memory = f }
}

// WithMetrics records pass metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// PassResult summarizes one pass
type PassResult struct {
	Positions int
	Priced    int
	Alerts    []types.Alert
	Executed  int
	Failed    int
}

// Monitor is the single periodic exit loop of a process.
type Monitor struct {
	store  *positions.Store
	prices PriceSource
	engine *risk.ExitTriggerEngine
	exits  Exiter

	sinks   []AlertSink
	memory  Flusher
	metrics *metrics.Metrics
	cfg     Config

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a monitor.
func New(store *positions.Store, prices PriceSource, exits Exiter, cfg Config, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PriceTimeout <= 0 {
		cfg.PriceTimeout = DefaultPriceTimeout
	}
	m := &Monitor{
		store:  store,
		prices: prices,
		engine: risk.NewExitTriggerEngine(),
		exits:  exits,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start schedules passes every Interval. Passes never overlap: a tick that
// fires while a pass is still running is skipped.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}

	logger := cronLogger{}
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	m.ctx, m.cancel = context.WithCancel(ctx)

	schedule := fmt.Sprintf("@every %s", m.cfg.Interval)
	if _, err := c.AddFunc(schedule, func() { m.RunOnce(m.ctx) }); err != nil {
		m.cancel()
		return fmt.Errorf("schedule monitor: %w", err)
	}

	m.cron = c
	m.running = true
	c.Start()

	log.Info().Dur("interval", m.cfg.Interval).Msg("👁️ Position monitor started")
	return nil
}

// Stop lets the in-flight pass finish, then stops. If ctx expires first, the
// pass's outstanding venue calls are cancelled and Stop waits for it to unwind.
func (m *Monitor) Stop(ctx context.Context) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	c, cancel := m.cron, m.cancel
	m.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("⏱️ Monitor pass still running at shutdown, cancelling")
		cancel()
		<-done.Done()
	}
	cancel()
	log.Info().Msg("Position monitor stopped")
}

// RunOnce executes a single pass synchronously.
func (m *Monitor) RunOnce(ctx context.Context) PassResult {
	start := time.Now()
	var res PassResult

	if failed := m.store.FlushDirty(ctx); failed > 0 {
		log.Warn().Int("failed", failed).Msg("⚠️ Dirty positions still unflushed")
	}
	if m.memory != nil {
		m.memory.Flush(ctx)
	}

	open := m.store.ListOpen()
	res.Positions = len(open)

	priced := make([]*types.Position, 0, len(open))
	for _, pos := range open {
		if ctx.Err() != nil {
			break
		}
		price, err := m.price(ctx, pos.TokenAddress)
		if err != nil {
			log.Debug().Err(err).Str("id", pos.ID).Str("token", pos.TokenSymbol).Msg("Price unavailable, skipping")
			continue
		}
		pos.CurrentPrice = price
		if err := m.store.UpdatePrice(ctx, pos.ID, price); err != nil {
			// closed by a concurrent sell
			continue
		}
		priced = append(priced, pos)
	}
	res.Priced = len(priced)

	stops := m.store.TrailingStops()
	alerts := m.engine.Evaluate(priced, stops)
	m.store.ApplyEvaluation(ctx, priced, stops)
	res.Alerts = alerts

	for _, alert := range alerts {
		m.metrics.IncAlert(string(alert.Type))
		m.notify(ctx, alert)

		if m.exits == nil {
			continue
		}
		executed, err := m.exits.MaybeExecuteExit(ctx, alert)
		switch {
		case err != nil:
			res.Failed++
		case executed:
			res.Executed++
		}
	}

	took := time.Since(start)
	m.metrics.ObservePass(took, m.store.OpenCount(), m.store.DirtyCount())
	log.Debug().
		Int("positions", res.Positions).
		Int("priced", res.Priced).
		Int("alerts", len(alerts)).
		Int("executed", res.Executed).
		Dur("took", took).
		Msg("Monitor pass complete")
	return res
}

func (m *Monitor) price(ctx context.Context, mint string) (decimal.Decimal, error) {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.PriceTimeout)
	defer cancel()
	p, err := m.prices.GetPrice(pctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive price %s", p)
	}
	return p, nil
}

func (m *Monitor) notify(ctx context.Context, alert types.Alert) {
	for _, s := range m.sinks {
		if err := s.NotifyAlert(ctx, alert); err != nil {
			log.Warn().Err(err).Str("id", alert.Position.ID).Msg("⚠️ Alert sink failed")
		}
	}
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
