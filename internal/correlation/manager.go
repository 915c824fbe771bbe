package correlation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"triarb/internal/advisor"
	"triarb/internal/broker"
	"triarb/internal/cache"
	"triarb/internal/logging"
	"triarb/internal/monitoring"
	"triarb/internal/symbolmap"
	"triarb/internal/tracker"
)

var errNoHistory = errors.New("insufficient historical data for correlation")

// Manager is the Correlation & Recovery Engine (spec §4.5).
type Manager struct {
	mu sync.Mutex

	cfg     Config
	br      broker.Broker
	symbols *symbolmap.Mapper
	trk     *tracker.Tracker
	adv     advisor.Advisor
	matrixCache cache.MatrixCache
	log     *logging.Logger
	metrics *monitoring.Metrics

	matrix      map[string]map[string]float64
	recoveries  map[string]*Recovery
	stats       Stats
	balance     float64
	equity      float64
	freeMargin  float64

	cronSched *cron.Cron
}

// New builds a Manager. matrixCache may be nil, in which case the matrix
// is purely in-process (spec §5.5: Redis is a write-through mirror only).
func New(cfg Config, br broker.Broker, symbols *symbolmap.Mapper, trk *tracker.Tracker, adv advisor.Advisor, matrixCache cache.MatrixCache, log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	if adv == nil {
		adv = advisor.PassthroughAdvisor{}
	}
	return &Manager{
		cfg:         cfg,
		br:          br,
		symbols:     symbols,
		trk:         trk,
		adv:         adv,
		matrixCache: matrixCache,
		log:         log,
		metrics:     metrics,
		matrix:      make(map[string]map[string]float64),
		recoveries:  make(map[string]*Recovery),
	}
}

// SetSizingParams receives the Coordinator's per-tick account push
// (spec §4.6 step 2) and stores the values; FindHedgeCandidates sizes
// hedges from the loss and price it is given and does not read them.
func (m *Manager) SetSizingParams(balance, equity, freeMargin float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance, m.equity, m.freeMargin = balance, equity, freeMargin
}

// Start schedules the 5-minute (or configured) matrix refresh cron job
// and performs the initial calculation synchronously (spec §4.5: "Initial
// calculation is performed once on startup").
func (m *Manager) Start(ctx context.Context, universe []string) error {
	if err := m.RefreshMatrix(ctx, universe); err != nil && m.log != nil {
		m.log.WithError(err).Warn("initial correlation matrix refresh failed")
	}

	interval := m.cfg.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.cronSched = cron.New()
	spec := "@every " + interval.String()
	_, err := m.cronSched.AddFunc(spec, func() {
		if err := m.RefreshMatrix(ctx, universe); err != nil && m.log != nil {
			m.log.WithError(err).Warn("scheduled correlation matrix refresh failed")
		}
	})
	if err != nil {
		return err
	}
	m.cronSched.Start()
	return nil
}

// LoadFromCache warm-starts the in-process matrix from the shared cache
// mirror, if one is configured and populated (spec §5.5).
func (m *Manager) LoadFromCache(ctx context.Context) error {
	if m.matrixCache == nil {
		return nil
	}
	data, ok, err := m.matrixCache.Get(ctx, cache.MatrixKey)
	if err != nil || !ok {
		return err
	}
	matrix, err := decodeMatrix(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.matrix = matrix
	m.mu.Unlock()
	return nil
}

// Stop halts the refresh cron job.
func (m *Manager) Stop() {
	if m.cronSched != nil {
		<-m.cronSched.Stop().Done()
	}
}

func (m *Manager) persistLocked(ctx context.Context) {
	if m.matrixCache == nil {
		return
	}
	data, err := encodeMatrix(m.matrix)
	if err != nil {
		return
	}
	if err := m.matrixCache.Set(ctx, cache.MatrixKey, data, 0); err != nil && m.log != nil {
		m.log.WithError(err).Debug("correlation matrix cache write failed")
	}
}

// Stats returns a snapshot of the Manager's running counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ActiveRecoveries returns a copy of the currently tracked recoveries.
func (m *Manager) ActiveRecoveries() []Recovery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recovery, 0, len(m.recoveries))
	for _, r := range m.recoveries {
		if r.Status == RecoveryActive {
			out = append(out, *r)
		}
	}
	return out
}
