package arbitrage

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"triarb/internal/broker"
	"triarb/internal/calc"
	"triarb/internal/logging"
	"triarb/internal/monitoring"
	"triarb/internal/symbolmap"
	"triarb/internal/tracker"
)

// DetectionConfig carries the tunables from config.ArbitrageParams.
type DetectionConfig struct {
	MinThresholdPips   float64
	MaxSpreadRatio     float64
	MinVolumeThreshold float64
	MinConfidence      float64
	CommissionRate     float64
	SlippagePercent    float64
	PriceSampleCount   int
	SampleInterval     time.Duration
	MaxPriceVariance   float64
	MaxActiveTriangles int
	MinOrderInterval   time.Duration
	MaxOrdersPerDay    int
}

// SizingParams is what the Coordinator pushes on every tick (spec §4.6 step 2).
type SizingParams struct {
	Balance           float64
	Equity            float64
	FreeMargin        float64
	TargetPipValue    float64
	BalanceMultiplier float64
}

// Detector is the Triangle Arbitrage Detector (spec §4.4).
type Detector struct {
	mu sync.Mutex

	br       broker.Broker
	symbols  *symbolmap.Mapper
	trk      *tracker.Tracker
	cfg      DetectionConfig
	lotCfg   calc.LotSizingConfig
	log      *logging.Logger
	metrics  *monitoring.Metrics

	regime    calc.Regime
	sizing    SizingParams
	active    *ActiveGroup
	groupSeq  int64
	magicSeq  int64

	limiter      *rate.Limiter
	dailyCount   int
	dailyResetAt time.Time
}

// New builds a Detector. br should already be wrapped with broker.NewGuarded
// by the caller so leg placement is circuit-broken (SPEC_FULL §5.4).
func New(br broker.Broker, symbols *symbolmap.Mapper, trk *tracker.Tracker, cfg DetectionConfig, lotCfg calc.LotSizingConfig, log *logging.Logger, metrics *monitoring.Metrics) *Detector {
	interval := cfg.MinOrderInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Detector{
		br:           br,
		symbols:      symbols,
		trk:          trk,
		cfg:          cfg,
		lotCfg:       lotCfg,
		log:          log,
		metrics:      metrics,
		regime:       calc.RegimeNormal,
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		dailyResetAt: nextMidnightUTC(time.Now()),
	}
}

func nextMidnightUTC(from time.Time) time.Time {
	y, m, d := from.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// SetRegime updates the current market regime (pushed by the Coordinator).
func (d *Detector) SetRegime(regime calc.Regime) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regime = regime
}

// Regime returns the currently active regime.
func (d *Detector) Regime() calc.Regime {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regime
}

// SetSizingParams updates the account-driven sizing parameters (spec §4.6 step 2).
func (d *Detector) SetSizingParams(p SizingParams) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sizing = p
}

// IsPaused reports whether detection is currently paused because a group
// is active (spec §3, §5).
func (d *Detector) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active != nil && d.active.Status == GroupActive
}

// CurrentGroup returns the currently active group, if any.
func (d *Detector) CurrentGroup() (ActiveGroup, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return ActiveGroup{}, false
	}
	return *d.active, true
}

type sampledPrice struct {
	symbol  string
	samples []float64
	spread  float64
}

// sampleLeg samples the broker quote N times with the configured spacing
// and returns every sample plus the spread, per spec §4.4 step 1.
func (d *Detector) sampleLeg(ctx context.Context, symbol string) (*sampledPrice, error) {
	count := d.cfg.PriceSampleCount
	if count <= 0 {
		count = 3
	}
	interval := d.cfg.SampleInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	brokerSymbol := d.symbols.GetReal(symbol)
	samples := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		price, ok, err := d.br.GetCurrentPrice(ctx, brokerSymbol)
		if err != nil || !ok {
			return nil, fmt.Errorf("stale or missing quote for %s", symbol)
		}
		samples = append(samples, price)
		if i < count-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	spread, err := d.br.GetSpread(ctx, brokerSymbol)
	if err != nil {
		return nil, err
	}

	return &sampledPrice{symbol: symbol, samples: samples, spread: spread}, nil
}

func variance(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))
	var v float64
	for _, s := range samples {
		v += (s - mean) * (s - mean)
	}
	return v / float64(len(samples))
}

func lastOf(samples []float64) float64 {
	return samples[len(samples)-1]
}

// EvaluateTriangle samples each leg's price in parallel, validates, and
// returns a net-of-cost Opportunity if every check in spec §4.4 step 3
// passes, or nil if the triangle is rejected.
func (d *Detector) EvaluateTriangle(ctx context.Context, t Triangle) (*Opportunity, error) {
	var (
		legs [3]*sampledPrice
		mu   sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	pairs := [3]string{t.P1, t.P2, t.P3}
	for i, symbol := range pairs {
		i, symbol := i, symbol
		g.Go(func() error {
			sp, err := d.sampleLeg(gctx, symbol)
			if err != nil {
				return err
			}
			mu.Lock()
			legs[i] = sp
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil // stale/missing quote: reject silently, try next triangle
	}

	for _, sp := range legs {
		if variance(sp.samples) > d.cfg.MaxPriceVariance {
			return nil, nil
		}
	}

	p1, p2, p3 := lastOf(legs[0].samples), lastOf(legs[1].samples), lastOf(legs[2].samples)
	crossRate := calc.CrossRate(p1, p2, p3)
	profitPotential := math.Abs(crossRate-1) * 100

	avgSpread := (legs[0].spread + legs[1].spread + legs[2].spread) / 3
	spreadRatio := avgSpread / 100 // spread already expressed in pips; ratio vs a notional 100-pip band
	volumeScore := 1.0            // the Broker Gateway facade does not expose book depth; treated as always-acceptable

	threshold := d.regimeThreshold()

	checksPassed := 0
	checkProfit := profitPotential > threshold
	checkCrossRate := crossRate >= 0.5 && crossRate <= 2.0
	checkSpread := spreadRatio <= d.cfg.MaxSpreadRatio
	checkVolume := volumeScore >= d.cfg.MinVolumeThreshold
	checkRegimeProfit := true
	if d.regime == calc.RegimeVolatile || d.regime == calc.RegimeTrending {
		checkRegimeProfit = profitPotential >= threshold*1.5
	}
	for _, ok := range []bool{checkProfit, checkCrossRate, checkSpread, checkVolume, checkRegimeProfit} {
		if ok {
			checksPassed++
		}
	}
	if checksPassed < 5 {
		return nil, nil
	}

	spreadCostPct := (legs[0].spread + legs[1].spread + legs[2].spread) / p3 * 100
	net := profitPotential - spreadCostPct - d.cfg.CommissionRate*3*100 - d.cfg.SlippagePercent
	if net <= threshold {
		return nil, nil
	}

	confidence := d.confidenceScore(net, checksPassed, spreadRatio, volumeScore)
	if confidence < d.cfg.MinConfidence {
		return nil, nil
	}

	opp := &Opportunity{
		ID:                 fmt.Sprintf("%s_%d", t.String(), time.Now().UnixNano()),
		Triangle:           t,
		CrossRate:          crossRate,
		ProfitPotentialPct: net,
		Legs:               d.legDirections(t, crossRate),
		Confidence:         confidence,
		MarketRegime:       d.regime,
		CreatedAt:          time.Now(),
	}
	if d.metrics != nil {
		d.metrics.OpportunitiesFound.Inc()
	}
	return opp, nil
}

// legDirections decides the side of each leg per spec §3: cross_rate > 1
// opens BUY, BUY, SELL; cross_rate < 1 opens SELL, SELL, BUY.
func (d *Detector) legDirections(t Triangle, crossRate float64) [3]Leg {
	side1, side2, side3 := broker.SideBuy, broker.SideBuy, broker.SideSell
	if crossRate < 1 {
		side1, side2, side3 = broker.SideSell, broker.SideSell, broker.SideBuy
	}
	return [3]Leg{
		{Symbol: t.P1, Side: side1},
		{Symbol: t.P2, Side: side2},
		{Symbol: t.P3, Side: side3},
	}
}

func (d *Detector) regimeThreshold() float64 {
	if preset, ok := calc.RegimeThresholds[d.regime]; ok {
		return preset.ThresholdPips
	}
	return d.cfg.MinThresholdPips
}

// confidenceScore implements spec §4.4 step 4.
func (d *Detector) confidenceScore(profitPct float64, checksPassed int, spreadRatio, volumeScore float64) float64 {
	var base float64
	switch {
	case profitPct >= 2.0:
		base = 0.4
	case profitPct >= 1.0:
		base = 0.3
	default:
		base = 0.2
	}

	score := base + 0.3*(float64(checksPassed)/5.0)

	if spreadRatio < 0.1 {
		score += 0.2
	} else if spreadRatio < 0.2 {
		score += 0.1
	}

	if volumeScore >= 0.8 {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

// Detect scans the regime-prioritized triangle list and returns the first
// validated opportunity, or nil if none qualify.
func (d *Detector) Detect(ctx context.Context, availableSymbols []string) (*Opportunity, error) {
	if d.IsPaused() {
		return nil, nil
	}

	triangles := GenerateTriangles(availableSymbols)
	triangles = SelectByRegimePriority(triangles, string(d.Regime()))

	usedSymbols := d.usedSymbols()

	for _, t := range triangles {
		if usedSymbols[t.P1] || usedSymbols[t.P2] || usedSymbols[t.P3] {
			continue
		}
		opp, err := d.EvaluateTriangle(ctx, t)
		if err != nil {
			if d.log != nil {
				d.log.WithError(err).WithField("triangle", t.String()).Debug("triangle evaluation error")
			}
			continue
		}
		if opp != nil {
			return opp, nil
		}
	}
	return nil, nil
}

func (d *Detector) usedSymbols() map[string]bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	used := make(map[string]bool)
	if d.active != nil && d.active.Status == GroupActive {
		used[d.active.Triangle.P1] = true
		used[d.active.Triangle.P2] = true
		used[d.active.Triangle.P3] = true
	}
	return used
}

// ExecuteGroup enforces the gating preconditions and atomically places
// the three legs of opp (spec §4.4 "Atomic Group Execution"). On any leg
// failure, surviving legs remain tracked as ORIGINAL positions per the
// never-cut-loss posture — there is no rollback.
func (d *Detector) ExecuteGroup(ctx context.Context, opp *Opportunity) (*ActiveGroup, error) {
	d.mu.Lock()
	if d.active != nil && d.active.Status == GroupActive {
		d.mu.Unlock()
		return nil, fmt.Errorf("an active group already exists")
	}
	used := map[string]bool{}
	if d.active != nil {
		used[d.active.Triangle.P1], used[d.active.Triangle.P2], used[d.active.Triangle.P3] = true, true, true
	}
	if used[opp.Triangle.P1] || used[opp.Triangle.P2] || used[opp.Triangle.P3] {
		d.mu.Unlock()
		return nil, fmt.Errorf("triangle symbol already committed to an active group")
	}
	if err := d.checkRateLimitLocked(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	if !d.limiter.Allow() {
		return nil, fmt.Errorf("rate limited: minimum order interval not elapsed")
	}

	d.mu.Lock()
	d.groupSeq++
	groupID := fmt.Sprintf("G%d", d.groupSeq)
	d.magicSeq++
	magic := d.magicSeq
	d.mu.Unlock()

	lots := d.computeLotSizes(opp)

	var positions []broker.Position
	for i, leg := range opp.Legs {
		req := &broker.OrderRequest{
			Symbol:  d.symbols.GetReal(leg.Symbol),
			Side:    leg.Side,
			Volume:  lots[i],
			Comment: fmt.Sprintf("ARB_%s_%s", groupID, leg.Symbol),
			Magic:   magic,
		}
		res, err := d.br.PlaceOrder(ctx, req)
		if err != nil || res == nil || !res.IsFilled() {
			if d.log != nil {
				d.log.WithField("group", groupID).WithField("leg", leg.Symbol).
					WithError(err).Warn("leg placement failed, no rollback, surviving legs become ORIGINAL")
			}
			break
		}
		positions = append(positions, broker.Position{
			Ticket: res.Ticket, Symbol: leg.Symbol, Type: leg.Side, Volume: lots[i], Magic: magic,
			Comment: req.Comment, Time: time.Now(),
		})
		if err := d.trk.RegisterOriginal(res.Ticket, leg.Symbol, groupID); err != nil && d.log != nil {
			d.log.WithError(err).Warn("failed to register original leg with tracker")
		}
	}

	if len(positions) == 0 {
		return nil, fmt.Errorf("all legs failed to place")
	}

	group := &ActiveGroup{
		GroupID:   groupID,
		Triangle:  opp.Triangle,
		Positions: positions,
		CreatedAt: time.Now(),
		Status:    GroupActive,
	}

	d.mu.Lock()
	d.active = group
	d.recordOrderPlacedLocked()
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.GroupsExecuted.WithLabelValues(string(opp.MarketRegime)).Inc()
	}
	return group, nil
}

func (d *Detector) computeLotSizes(opp *Opportunity) [3]float64 {
	pv := [3]float64{10, 10, 10} // per-standard-lot pip value placeholder for symbols without live rate feed
	lots := calc.UniformTriangleLotSizing(pv, d.sizing.Balance, 10000, d.sizing.TargetPipValue, d.lotCfg)
	return lots
}

// checkRateLimitLocked enforces the daily order cap with date rollover.
// Must be called with d.mu held.
func (d *Detector) checkRateLimitLocked() error {
	now := time.Now()
	if !now.Before(d.dailyResetAt) {
		d.dailyCount = 0
		d.dailyResetAt = nextMidnightUTC(now)
	}
	if d.cfg.MaxOrdersPerDay > 0 && d.dailyCount >= d.cfg.MaxOrdersPerDay {
		return fmt.Errorf("daily order cap reached")
	}
	return nil
}

func (d *Detector) recordOrderPlacedLocked() {
	d.dailyCount++
}

// MonitorGroup implements spec §4.4 "Group Lifecycle Monitoring": expires
// groups older than 24h, and closes groups whose aggregate PnL is
// non-negative. aggregatePnL is supplied by the caller (summed by the
// coordinator from live broker positions).
func (d *Detector) MonitorGroup(ctx context.Context, aggregatePnL float64) (closed bool, err error) {
	d.mu.Lock()
	group := d.active
	d.mu.Unlock()
	if group == nil || group.Status != GroupActive {
		return false, nil
	}

	expired := time.Since(group.CreatedAt) > GroupExpiry
	profitable := aggregatePnL >= 0

	if !expired && !profitable {
		return false, nil
	}

	for _, pos := range group.Positions {
		if _, err := d.br.ClosePosition(ctx, pos.Ticket); err != nil && d.log != nil {
			d.log.WithError(err).WithField("ticket", pos.Ticket).Warn("failed to close group leg")
		}
	}

	d.mu.Lock()
	if expired {
		d.active.Status = GroupExpired
	} else {
		d.active.Status = GroupClosed
	}
	d.active = nil
	d.mu.Unlock()

	return true, nil
}

// CircuitBreakerOpenGauge lets the coordinator surface the broker circuit
// breaker state if the underlying broker is a *broker.Guarded.
func CircuitBreakerOpenGauge(m *monitoring.Metrics, open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerOpen.Set(1)
	} else {
		m.CircuitBreakerOpen.Set(0)
	}
}
