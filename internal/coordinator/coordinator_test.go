package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/arbitrage"
	"triarb/internal/broker"
	"triarb/internal/calc"
	"triarb/internal/correlation"
	"triarb/internal/symbolmap"
	"triarb/internal/tracker"
)

func newTestCoordinator(t *testing.T, b *broker.SimBroker) *Coordinator {
	t.Helper()
	mapper := symbolmap.New(t.TempDir()+"/symbols.json", nil)
	trk := tracker.New(tracker.Config{PersistPath: t.TempDir() + "/orders.json", MaxChainDepth: 3}, nil, nil)

	detCfg := arbitrage.DetectionConfig{
		MinThresholdPips: 0.1, MaxSpreadRatio: 10, MinVolumeThreshold: 0, MinConfidence: 0,
		PriceSampleCount: 1, SampleInterval: time.Millisecond, MaxPriceVariance: 100,
		MinOrderInterval: time.Millisecond, MaxOrdersPerDay: 1000,
	}
	lotCfg := calc.LotSizingConfig{Step: 0.01, Min: 0.01, Max: 10}
	det := arbitrage.New(b, mapper, trk, detCfg, lotCfg, nil, nil)

	corr := correlation.New(correlation.DefaultConfig(), b, mapper, trk, nil, nil, nil, nil)

	cfg := Config{TickInterval: 10 * time.Millisecond, ShutdownTimeout: time.Second, AvailableSymbols: []string{"EURUSD", "USDJPY", "EURJPY"}}
	return New(cfg, b, det, corr, trk, nil, nil)
}

func TestTickRunsFullCycleWithoutPanicOnEmptyAccount(t *testing.T) {
	b := broker.NewSimBroker([]string{}, 0)
	c := newTestCoordinator(t, b)
	c.tick(context.Background())
}

func TestRunAndStopShutsDownCleanly(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDJPY", "EURJPY"}, 10000)
	b.SetPrice("EURUSD", 1.10)
	b.SetPrice("USDJPY", 150.0)
	b.SetPrice("EURJPY", 160.0)
	b.SetSpread("EURUSD", 0.1)
	b.SetSpread("USDJPY", 0.1)
	b.SetSpread("EURJPY", 0.1)

	c := newTestCoordinator(t, b)
	c.Run(context.Background())
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	// Stop must return promptly; a second Stop call should not hang either.
	c.Stop()
}

func TestRunStopsOnParentContextCancel(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD"}, 10000)
	c := newTestCoordinator(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	c.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick loop did not exit after parent context cancellation")
	}
}

func TestRunArbitrageExecutesOnValidOpportunity(t *testing.T) {
	b := broker.NewSimBroker([]string{"EURUSD", "USDJPY", "EURJPY"}, 10000)
	b.SetPrice("EURUSD", 1.10)
	b.SetPrice("USDJPY", 150.0)
	b.SetPrice("EURJPY", 160.0)
	b.SetSpread("EURUSD", 0.1)
	b.SetSpread("USDJPY", 0.1)
	b.SetSpread("EURJPY", 0.1)

	c := newTestCoordinator(t, b)
	c.runArbitrage(context.Background())

	assert.True(t, c.det.IsPaused())
	require.Equal(t, 1, c.totalTrades)
}
