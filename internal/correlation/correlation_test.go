package correlation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/advisor"
	"triarb/internal/broker"
	"triarb/internal/symbolmap"
	"triarb/internal/tracker"
)

func newTestManager(t *testing.T, b broker.Broker, adv advisor.Advisor) *Manager {
	t.Helper()
	mapper := symbolmap.New(t.TempDir()+"/symbols.json", nil)
	trk := tracker.New(tracker.Config{PersistPath: t.TempDir() + "/orders.json", MaxChainDepth: 3}, nil, nil)
	cfg := DefaultConfig()
	return New(cfg, b, mapper, trk, adv, nil, nil, nil)
}

func seedBars(b *broker.SimBroker, symbol string, base float64, trendUp bool, n int) {
	bars := make([]broker.Bar, n)
	price := base
	for i := 0; i < n; i++ {
		if trendUp {
			price += 0.0005
		} else {
			price -= 0.0003
		}
		bars[i] = broker.Bar{Time: time.Now().Add(time.Duration(i) * time.Hour), Close: price}
	}
	b.SetBars(symbol, bars)
}

func TestGetCorrelationComputesFromHistory(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "GBPUSD"}, 10000)
	seedBars(b, "EURUSD", 1.10, true, 40)
	seedBars(b, "GBPUSD", 1.25, true, 40)

	m := newTestManager(t, b, nil)
	corr := m.GetCorrelation(context.Background(), "EURUSD", "GBPUSD")
	assert.Greater(t, corr, 0.0)
}

func TestGetCorrelationFallsBackToDefaultTable(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	m := newTestManager(t, b, nil)

	corr := m.GetCorrelation(context.Background(), "EURUSD", "USDCHF")
	assert.Equal(t, -0.90, corr)
}

func TestFindHedgeCandidatesFiltersByCorrAndRatio(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	m := newTestManager(t, b, nil)
	m.setLocked("EURUSD", "USDCHF", -0.90)

	candidates := m.FindHedgeCandidates(context.Background(), "EURUSD", broker.SideBuy, 50, 1.10)
	require.Len(t, candidates, 1)
	assert.Equal(t, "USDCHF", candidates[0].HedgePair)
	assert.Equal(t, DirectionSame, candidates[0].Direction)
	assert.Equal(t, broker.SideBuy, candidates[0].HedgeSide)
}

func TestExecuteRecoveryPlacesHedgeAndRegistersTracker(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	b.SetPrice("USDCHF", 0.91)

	orig, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)
	b.SetPrice("EURUSD", 1.05) // original now losing

	m := newTestManager(t, b, nil)
	require.NoError(t, m.trk.RegisterOriginal(orig.Ticket, "EURUSD", "G1"))
	cand := HedgeCandidate{
		BasePair: "EURUSD", HedgePair: "USDCHF", Correlation: -0.9,
		HedgeRatio: 1.2, HedgeVolume: 0.1, RecoveryPotential: 0.8,
		Direction: DirectionSame, HedgeSide: broker.SideBuy,
	}

	rec, err := m.ExecuteRecovery(context.Background(), cand, orig.Ticket)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, RecoveryActive, rec.Status)

	order, ok := m.trk.Get(rec.HedgeTicket, "USDCHF")
	require.True(t, ok)
	assert.Equal(t, tracker.TypeRecovery, order.Type)
}

type refusingAdvisor struct{}

func (refusingAdvisor) Evaluate(ctx context.Context, req advisor.AdvisorRequest) (advisor.AdvisorResponse, error) {
	return advisor.AdvisorResponse{Approve: false, Confidence: 0.1}, nil
}

func TestExecuteRecoveryDeclinedByAdvisor(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	b.SetPrice("USDCHF", 0.91)
	orig, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)

	m := newTestManager(t, b, refusingAdvisor{})
	cand := HedgeCandidate{BasePair: "EURUSD", HedgePair: "USDCHF", HedgeVolume: 0.1, HedgeSide: broker.SideBuy}

	_, err = m.ExecuteRecovery(context.Background(), cand, orig.Ticket)
	assert.Error(t, err)
}

func TestMonitorRecoveriesClosesOnProfitableTotal(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	b.SetPrice("EURUSD", 1.10)
	b.SetPrice("USDCHF", 0.91)

	orig, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)
	hedge, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "USDCHF", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)

	m := newTestManager(t, b, nil)
	m.recoveries["rec1"] = &Recovery{
		BasePair: "EURUSD", HedgePair: "USDCHF",
		OriginalTicket: orig.Ticket, HedgeTicket: hedge.Ticket,
		EntryTime: time.Now(), Status: RecoveryActive,
	}

	require.NoError(t, m.MonitorRecoveries(context.Background()))

	assert.Equal(t, RecoverySuccess, m.recoveries["rec1"].Status)
	assert.Equal(t, 1, m.Stats().SuccessfulRecoveries)
}

func TestMonitorRecoveriesTimesOutStaleEntries(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDCHF"}, 10000)
	b.SetPrice("EURUSD", 1.10)
	b.SetPrice("USDCHF", 0.91)

	orig, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)
	hedge, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "USDCHF", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)

	m := newTestManager(t, b, nil)
	m.cfg.MaxRecoveryTimeHours = 1
	m.recoveries["rec1"] = &Recovery{
		BasePair: "EURUSD", HedgePair: "USDCHF",
		OriginalTicket: orig.Ticket, HedgeTicket: hedge.Ticket,
		EntryTime: time.Now().Add(-2 * time.Hour), Status: RecoveryActive,
	}

	require.NoError(t, m.MonitorRecoveries(context.Background()))
	assert.Equal(t, RecoveryTimeout, m.recoveries["rec1"].Status)
}

func TestRebalanceSkipsBeforeFrequencyElapsed(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD"}, 10000)
	m := newTestManager(t, b, nil)

	actions, lastAt, err := m.Rebalance(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, actions)
	assert.WithinDuration(t, time.Now(), lastAt, time.Second)
}

func TestRebalanceEmitsActionsOnImbalance(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "GBPUSD"}, 10000)
	b.SetPrice("EURUSD", 1.10)
	b.SetPrice("GBPUSD", 1.25)
	_, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 5})
	require.NoError(t, err)
	_, err = b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "GBPUSD", Side: broker.SideBuy, Volume: 0.1})
	require.NoError(t, err)

	m := newTestManager(t, b, nil)
	actions, _, err := m.Rebalance(context.Background(), time.Now().Add(-7*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, actions)
}
