// Package monitoring exposes the Prometheus counters and gauges the
// Order Tracker, Arbitrage Detector, and Adaptive Coordinator publish
// (SPEC_FULL §5.3, §5.4, §5.7).
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every gauge/counter the engine publishes.
type Metrics struct {
	// Order Tracker (§5.3)
	TrackedOrders    *prometheus.GaugeVec // labels: status
	HedgedRatio      prometheus.Gauge
	TrackerSyncLatency prometheus.Histogram

	// Arbitrage Detector (§5.4)
	OpportunitiesFound prometheus.Counter
	GroupsExecuted     *prometheus.CounterVec // labels: regime
	CircuitBreakerOpen prometheus.Gauge

	// Correlation Manager (§5.5)
	CorrelationRefreshDuration prometheus.Histogram
	HedgesExecuted             prometheus.Counter
	RebalanceEventsPublished   prometheus.Counter

	// Adaptive Coordinator (§4.6 step 8 / §5.7)
	TotalTrades      prometheus.Counter
	WinRate          prometheus.Gauge
	RecoveriesActive prometheus.Gauge
	RecoveriesClosed *prometheus.CounterVec // labels: outcome
	TickDuration     prometheus.Histogram
	TickErrors       prometheus.Counter
}

// NewMetrics builds and registers the metrics against the default
// registerer. Safe to call once per process; pass a dedicated
// prometheus.Registerer in tests to avoid double-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TrackedOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "triarb_tracked_orders",
			Help: "Number of orders currently held by the order tracker, by status.",
		}, []string{"status"}),
		HedgedRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_hedged_ratio",
			Help: "Fraction of ORIGINAL orders currently in HEDGED status.",
		}),
		TrackerSyncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triarb_tracker_sync_latency_seconds",
			Help:    "Duration of sync_with_broker reconciliation passes.",
			Buckets: prometheus.DefBuckets,
		}),
		OpportunitiesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_opportunities_found_total",
			Help: "Total arbitrage opportunities that passed validation.",
		}),
		GroupsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_groups_executed_total",
			Help: "Total arbitrage groups executed, by market regime at entry.",
		}, []string{"regime"}),
		CircuitBreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_broker_circuit_breaker_open",
			Help: "1 if the broker circuit breaker is currently open, else 0.",
		}),
		CorrelationRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triarb_correlation_refresh_duration_seconds",
			Help:    "Duration of correlation matrix refresh cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		HedgesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_hedges_executed_total",
			Help: "Total recovery hedges executed.",
		}),
		RebalanceEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_rebalance_events_total",
			Help: "Total advisory portfolio rebalance events published.",
		}),
		TotalTrades: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_total_trades_total",
			Help: "Total arbitrage groups executed by the coordinator.",
		}),
		WinRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_win_rate",
			Help: "Rolling win rate reported by the coordinator.",
		}),
		RecoveriesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triarb_recoveries_active",
			Help: "Number of currently open recovery hedges.",
		}),
		RecoveriesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triarb_recoveries_closed_total",
			Help: "Total recovery hedges closed, by outcome.",
		}, []string{"outcome"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triarb_coordinator_tick_duration_seconds",
			Help:    "Duration of each coordinator control-loop tick.",
			Buckets: prometheus.DefBuckets,
		}),
		TickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triarb_coordinator_tick_errors_total",
			Help: "Total ticks that logged a fail-soft error.",
		}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.TrackedOrders, m.HedgedRatio, m.TrackerSyncLatency,
		m.OpportunitiesFound, m.GroupsExecuted, m.CircuitBreakerOpen,
		m.CorrelationRefreshDuration, m.HedgesExecuted, m.RebalanceEventsPublished,
		m.TotalTrades, m.WinRate, m.RecoveriesActive, m.RecoveriesClosed,
		m.TickDuration, m.TickErrors,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
