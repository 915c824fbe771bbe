// Package coordinator implements the Adaptive Coordinator: the single
// owner of the engine's periodic tick, driving the Arbitrage Detector and
// Correlation Manager through one fixed-cadence loop (spec §4.6).
package coordinator

import (
	"context"
	"sync"
	"time"

	"triarb/internal/arbitrage"
	"triarb/internal/broker"
	"triarb/internal/calc"
	"triarb/internal/correlation"
	"triarb/internal/logging"
	"triarb/internal/monitoring"
	"triarb/internal/tracker"
)

// Config tunes the coordinator's loop.
type Config struct {
	TickInterval     time.Duration
	ShutdownTimeout  time.Duration
	AvailableSymbols []string
	// MinLossPercent gates recovery eligibility: a losing position must be
	// down at least this percent of account equity before runRecovery will
	// search for a hedge (spec §6.2 recovery_params.loss_thresholds).
	MinLossPercent float64
}

// DefaultConfig matches spec §4.6's 30-second cadence.
func DefaultConfig() Config {
	return Config{
		TickInterval:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MinLossPercent:  0.5,
	}
}

// Coordinator is the sole owner of the engine's periodic tick.
type Coordinator struct {
	cfg Config

	br   broker.Broker
	det  *arbitrage.Detector
	corr *correlation.Manager
	trk  *tracker.Tracker

	log     *logging.Logger
	metrics *monitoring.Metrics

	mu              sync.Mutex
	lastRebalanceAt time.Time
	totalTrades     int
	successfulTrades int
	equity          float64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Coordinator wiring the Broker Gateway, Arbitrage Detector,
// Correlation Manager, and Order Tracker together.
func New(cfg Config, br broker.Broker, det *arbitrage.Detector, corr *correlation.Manager, trk *tracker.Tracker, log *logging.Logger, metrics *monitoring.Metrics) *Coordinator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MinLossPercent <= 0 {
		cfg.MinLossPercent = 0.5
	}
	return &Coordinator{
		cfg:     cfg,
		br:      br,
		det:     det,
		corr:    corr,
		trk:     trk,
		log:     log,
		metrics: metrics,
	}
}

// Run starts the tick loop in a background goroutine and returns
// immediately. Stop (or ctx cancellation) ends the loop cooperatively.
func (c *Coordinator) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(runCtx)
	}()
}

// Stop cancels the tick loop and waits up to the configured shutdown
// timeout for it to exit cleanly (spec §5.7: cooperative shutdown via
// context.Context + sync.WaitGroup, joined with a timeout).
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownTimeout):
		if c.log != nil {
			c.log.Warn("coordinator shutdown timed out waiting for tick loop to exit")
		}
	}
}

func (c *Coordinator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs the eight-step cycle of spec §4.6.
func (c *Coordinator) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()

	// Step 1: account refresh.
	balance, equity, freeMargin, ok := c.refreshAccount(ctx)
	if !ok {
		return
	}
	c.mu.Lock()
	c.equity = equity
	c.mu.Unlock()

	// Step 2: sizing update.
	balanceMultiplier := balance / 10_000
	targetPipValue := 5.0 * balanceMultiplier
	c.det.SetSizingParams(arbitrage.SizingParams{
		Balance: balance, Equity: equity, FreeMargin: freeMargin,
		TargetPipValue: targetPipValue, BalanceMultiplier: balanceMultiplier,
	})
	c.corr.SetSizingParams(balance, equity, freeMargin)

	// Step 3: portfolio health / rebalancing.
	c.mu.Lock()
	lastRebalance := c.lastRebalanceAt
	c.mu.Unlock()
	if actions, newLast, err := c.corr.Rebalance(ctx, lastRebalance); err != nil {
		c.tickError(err)
	} else if len(actions) > 0 {
		c.mu.Lock()
		c.lastRebalanceAt = newLast
		c.mu.Unlock()
	}

	// Step 4: execute trading, branched by regime.
	regime := c.det.Regime()
	switch regime {
	case calc.RegimeVolatile:
		c.runRecovery(ctx)
		c.runArbitrage(ctx)
	case calc.RegimeTrending:
		c.runArbitrage(ctx)
		c.runRecovery(ctx)
	case calc.RegimeRanging:
		c.runArbitrage(ctx)
	default:
		c.runArbitrage(ctx)
		c.runRecovery(ctx)
	}

	// Step 5: group checks.
	if group, ok := c.det.CurrentGroup(); ok {
		pnl := c.groupPnL(ctx, group)
		if _, err := c.det.MonitorGroup(ctx, pnl); err != nil {
			c.tickError(err)
		}
	}

	// Step 6: recovery chain checks.
	if err := c.corr.MonitorRecoveries(ctx); err != nil {
		c.tickError(err)
	}

	// Step 7: tracker sync.
	if err := c.trk.SyncWithBroker(ctx, c.br); err != nil {
		c.tickError(err)
	}

	// Step 8: metric update.
	c.updateMetrics()
}

func (c *Coordinator) refreshAccount(ctx context.Context) (balance, equity, freeMargin float64, ok bool) {
	var err error
	balance, err = c.br.GetAccountBalance(ctx)
	if err != nil {
		c.tickError(err)
		return 0, 0, 0, false
	}
	equity, err = c.br.GetAccountEquity(ctx)
	if err != nil {
		c.tickError(err)
		return 0, 0, 0, false
	}
	freeMargin, err = c.br.GetFreeMargin(ctx)
	if err != nil {
		c.tickError(err)
		return 0, 0, 0, false
	}
	return balance, equity, freeMargin, true
}

func (c *Coordinator) runArbitrage(ctx context.Context) {
	if c.det.IsPaused() {
		return
	}
	opp, err := c.det.Detect(ctx, c.cfg.AvailableSymbols)
	if err != nil {
		c.tickError(err)
		return
	}
	if opp == nil {
		return
	}
	if _, err := c.det.ExecuteGroup(ctx, opp); err != nil {
		if c.log != nil {
			c.log.WithError(err).Debug("arbitrage group execution skipped")
		}
		return
	}
	c.mu.Lock()
	c.totalTrades++
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.TotalTrades.Inc()
	}
}

func (c *Coordinator) runRecovery(ctx context.Context) {
	for _, order := range c.trk.All() {
		if order.Status != tracker.StatusNotHedged {
			continue
		}
		positions, err := c.br.GetAllPositions(ctx)
		if err != nil {
			c.tickError(err)
			return
		}
		var pos *broker.Position
		for i := range positions {
			if positions[i].Ticket == order.Ticket && positions[i].Symbol == order.Symbol {
				pos = &positions[i]
				break
			}
		}
		if pos == nil || pos.Profit >= 0 {
			continue
		}
		c.mu.Lock()
		equity := c.equity
		c.mu.Unlock()
		if equity > 0 && (-pos.Profit/equity)*100 < c.cfg.MinLossPercent {
			continue
		}

		candidates := c.corr.FindHedgeCandidates(ctx, order.Symbol, pos.Type, -pos.Profit, pos.CurrentPrice)
		if len(candidates) == 0 {
			continue
		}
		if _, err := c.corr.ExecuteRecovery(ctx, candidates[0], order.Ticket); err != nil && c.log != nil {
			c.log.WithError(err).WithField("symbol", order.Symbol).Debug("recovery execution skipped")
		}
	}
}

func (c *Coordinator) groupPnL(ctx context.Context, group arbitrage.ActiveGroup) float64 {
	positions, err := c.br.GetAllPositions(ctx)
	if err != nil {
		return 0
	}
	byTicket := make(map[int64]float64, len(positions))
	for _, p := range positions {
		byTicket[p.Ticket] = p.Profit
	}
	var total float64
	for _, pos := range group.Positions {
		total += byTicket[pos.Ticket]
	}
	return total
}

func (c *Coordinator) tickError(err error) {
	if c.metrics != nil {
		c.metrics.TickErrors.Inc()
	}
	if c.log != nil {
		c.log.WithError(err).Warn("coordinator tick step failed")
	}
}

func (c *Coordinator) updateMetrics() {
	c.mu.Lock()
	total, successful := c.totalTrades, c.successfulTrades
	c.mu.Unlock()

	if c.metrics == nil {
		return
	}
	if total > 0 {
		c.metrics.WinRate.Set(float64(successful) / float64(total))
	}
	stats := c.corr.Stats()
	c.metrics.RecoveriesActive.Set(float64(stats.TotalRecoveries - stats.SuccessfulRecoveries - stats.TimedOutRecoveries))
}
