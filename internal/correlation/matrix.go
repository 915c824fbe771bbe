package correlation

import (
	"context"
	"sort"
	"time"

	"triarb/internal/broker"
	"triarb/internal/calc"
)

// defaultCorrelations is the built-in fallback table of approximate
// correlations keyed by canonical pair, used when historical computation
// fails; it is consulted before the tick-based estimate, which only covers
// pairs missing from this table.
var defaultCorrelations = map[string]map[string]float64{
	"EURUSD": {"GBPUSD": 0.85, "USDCHF": -0.90, "USDJPY": -0.30, "AUDUSD": 0.70, "NZDUSD": 0.65},
	"GBPUSD": {"EURUSD": 0.85, "USDCHF": -0.75, "USDJPY": -0.25, "AUDUSD": 0.65},
	"USDCHF": {"EURUSD": -0.90, "GBPUSD": -0.75, "USDJPY": 0.40},
	"USDJPY": {"EURUSD": -0.30, "GBPUSD": -0.25, "USDCHF": 0.40, "AUDUSD": -0.20},
	"AUDUSD": {"EURUSD": 0.70, "GBPUSD": 0.65, "NZDUSD": 0.90, "USDJPY": -0.20},
	"NZDUSD": {"AUDUSD": 0.90, "EURUSD": 0.65},
}

func lookupDefault(a, b string) (float64, bool) {
	if row, ok := defaultCorrelations[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := defaultCorrelations[b]; ok {
		if v, ok := row[a]; ok {
			return v, true
		}
	}
	return 0, false
}

// tickEstimate produces a rough correlation from currency overlap: pairs
// sharing a currency with the same sign convention tend to co-move, pairs
// sharing a currency with an inverted convention tend to diverge. This is
// the "currency-strength heuristic" fallback of spec §4.5.
func tickEstimate(a, b string) float64 {
	if len(a) != 6 || len(b) != 6 {
		return 0
	}
	baseA, quoteA := a[0:3], a[3:6]
	baseB, quoteB := b[0:3], b[3:6]

	switch {
	case quoteA == quoteB && baseA != baseB:
		return 0.6
	case baseA == baseB && quoteA != quoteB:
		return -0.5
	case baseA == quoteB || quoteA == baseB:
		return -0.4
	default:
		return 0
	}
}

// refreshPair recomputes the blended H1/H4/D1 correlation between two
// pairs from broker historical data, per spec §4.2/§4.5.
func (m *Manager) refreshPair(ctx context.Context, a, b string) (float64, error) {
	perTF := make(map[string]float64)
	for tf, barTimeframe := range map[string]broker.Timeframe{"H1": broker.TimeframeH1, "H4": broker.TimeframeH4, "D1": broker.TimeframeD1} {
		count := m.cfg.LookbackDays * barsPerDay(barTimeframe)
		barsA, errA := m.br.GetHistoricalData(ctx, m.symbols.GetReal(a), barTimeframe, count)
		barsB, errB := m.br.GetHistoricalData(ctx, m.symbols.GetReal(b), barTimeframe, count)
		if errA != nil || errB != nil {
			continue
		}
		closesA, closesB := alignCloses(barsA, barsB)
		if len(closesA) < calc.MinAlignedBars {
			continue
		}
		perTF[tf] = calc.WeightedCorrelation(closesA, closesB, m.cfg.DecayLambda)
	}
	if len(perTF) == 0 {
		return 0, errNoHistory
	}
	return calc.BlendedCorrelation(perTF), nil
}

func barsPerDay(tf broker.Timeframe) int {
	switch tf {
	case broker.TimeframeH1:
		return 24
	case broker.TimeframeH4:
		return 6
	case broker.TimeframeD1:
		return 1
	default:
		return 24
	}
}

// alignCloses truncates both bar series to their common tail length and
// returns aligned close slices, oldest first.
func alignCloses(a, b []broker.Bar) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return nil, nil
	}
	closesA := make([]float64, n)
	closesB := make([]float64, n)
	for i := 0; i < n; i++ {
		closesA[i] = a[len(a)-n+i].Close
		closesB[i] = b[len(b)-n+i].Close
	}
	return closesA, closesB
}

// RefreshMatrix recomputes correlations for every pair combination over
// the configured universe and persists the sparse matrix, per spec §4.5
// "Matrix Maintenance". Pair combinations whose historical data is
// unavailable are simply skipped, not fatal.
func (m *Manager) RefreshMatrix(ctx context.Context, universe []string) error {
	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.CorrelationRefreshDuration.Observe(time.Since(start).Seconds())
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < len(universe); i++ {
		for j := i + 1; j < len(universe); j++ {
			a, b := universe[i], universe[j]
			corr, err := m.refreshPair(ctx, a, b)
			if err != nil {
				continue
			}
			m.setLocked(a, b, corr)
		}
	}
	m.persistLocked(ctx)
	return nil
}

func (m *Manager) setLocked(a, b string, corr float64) {
	if m.matrix[a] == nil {
		m.matrix[a] = make(map[string]float64)
	}
	if m.matrix[b] == nil {
		m.matrix[b] = make(map[string]float64)
	}
	m.matrix[a][b] = corr
	m.matrix[b][a] = corr
}

// GetCorrelation returns the correlation between two pairs, following the
// cache → on-demand compute → default table → tick estimate fallback
// chain.
func (m *Manager) GetCorrelation(ctx context.Context, a, b string) float64 {
	m.mu.Lock()
	if row, ok := m.matrix[a]; ok {
		if v, ok := row[b]; ok {
			m.mu.Unlock()
			return v
		}
	}
	m.mu.Unlock()

	if corr, err := m.refreshPair(ctx, a, b); err == nil {
		m.mu.Lock()
		m.setLocked(a, b, corr)
		m.persistLocked(ctx)
		m.mu.Unlock()
		return corr
	}

	if v, ok := lookupDefault(a, b); ok {
		m.mu.Lock()
		m.setLocked(a, b, v)
		m.mu.Unlock()
		return v
	}

	v := tickEstimate(a, b)
	m.mu.Lock()
	m.setLocked(a, b, v)
	m.mu.Unlock()
	return v
}

// correlatedPairs returns every pair the matrix currently holds a
// correlation for against base, sorted for reproducibility.
func (m *Manager) correlatedPairs(base string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.matrix[base]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(row))
	for pair := range row {
		out = append(out, pair)
	}
	sort.Strings(out)
	return out
}
