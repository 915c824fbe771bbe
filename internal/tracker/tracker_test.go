package tracker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triarb/internal/broker"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	return New(Config{PersistPath: path, MaxChainDepth: 3}, nil, nil)
}

func TestRegisterOriginalRefusesDuplicateKey(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.RegisterOriginal(1001, "EURUSD", "G1"))
	err := tr.RegisterOriginal(1001, "EURUSD", "G1")
	assert.Error(t, err)
}

func TestRegisterRecoveryMarksParentHedged(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.RegisterOriginal(1001, "EURUSD", "G1"))
	require.NoError(t, tr.RegisterRecovery(2001, "GBPUSD", 1001, "EURUSD"))

	parent, ok := tr.Get(1001, "EURUSD")
	require.True(t, ok)
	assert.Equal(t, StatusHedged, parent.Status)
	assert.Contains(t, parent.RecoveryOrders, Key(2001, "GBPUSD"))

	child, ok := tr.Get(2001, "GBPUSD")
	require.True(t, ok)
	assert.Equal(t, TypeRecovery, child.Type)
	assert.Equal(t, Key(1001, "EURUSD"), child.HedgingFor)
}

func TestRegisterRecoveryRefusesMissingParent(t *testing.T) {
	tr := newTestTracker(t)
	err := tr.RegisterRecovery(2001, "GBPUSD", 9999, "EURUSD")
	assert.Error(t, err)
}

func TestRegisterRecoveryEnforcesChainDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	tr := New(Config{PersistPath: path, MaxChainDepth: 2}, nil, nil)

	require.NoError(t, tr.RegisterOriginal(1, "EURUSD", "G1"))
	require.NoError(t, tr.RegisterRecovery(2, "GBPUSD", 1, "EURUSD"))
	require.NoError(t, tr.RegisterRecovery(3, "USDCHF", 2, "GBPUSD"))

	err := tr.RegisterRecovery(4, "AUDUSD", 3, "USDCHF")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECOVERY_CHAIN_TOO_DEEP")
}

func TestIsHedgedAndNeedsRecovery(t *testing.T) {
	tr := newTestTracker(t)
	require.NoError(t, tr.RegisterOriginal(1, "EURUSD", "G1"))
	assert.False(t, tr.IsHedged(1, "EURUSD"))
	assert.True(t, tr.NeedsRecovery(1, "EURUSD"))

	require.NoError(t, tr.RegisterRecovery(2, "GBPUSD", 1, "EURUSD"))
	assert.True(t, tr.IsHedged(1, "EURUSD"))
	assert.False(t, tr.NeedsRecovery(1, "EURUSD"))
}

func TestSyncWithBrokerAutoRegistersUntracked(t *testing.T) {
	tr := newTestTracker(t)
	b := broker.NewSimBroker([]string{"EURUSD"}, 10000)
	b.SetPrice("EURUSD", 1.1)
	res, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 1})
	require.NoError(t, err)

	require.NoError(t, tr.SyncWithBroker(context.Background(), b))

	order, ok := tr.Get(res.Ticket, "EURUSD")
	require.True(t, ok)
	assert.Equal(t, TypeOriginal, order.Type)
	assert.True(t, order.AutoRegistered)
}

func TestSyncWithBrokerOrphansChildrenWhenParentCloses(t *testing.T) {
	tr := newTestTracker(t)
	b := broker.NewSimBroker([]string{"EURUSD", "GBPUSD"}, 10000)
	b.SetPrice("EURUSD", 1.1)
	b.SetPrice("GBPUSD", 1.25)

	parentRes, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "EURUSD", Side: broker.SideBuy, Volume: 1})
	require.NoError(t, err)
	childRes, err := b.PlaceOrder(context.Background(), &broker.OrderRequest{Symbol: "GBPUSD", Side: broker.SideSell, Volume: 1})
	require.NoError(t, err)

	require.NoError(t, tr.RegisterOriginal(parentRes.Ticket, "EURUSD", "G1"))
	require.NoError(t, tr.RegisterRecovery(childRes.Ticket, "GBPUSD", parentRes.Ticket, "EURUSD"))

	_, err = b.ClosePosition(context.Background(), parentRes.Ticket)
	require.NoError(t, err)

	require.NoError(t, tr.SyncWithBroker(context.Background(), b))

	_, stillTracked := tr.Get(parentRes.Ticket, "EURUSD")
	assert.False(t, stillTracked)

	child, ok := tr.Get(childRes.Ticket, "GBPUSD")
	require.True(t, ok)
	assert.Equal(t, StatusOrphaned, child.Status)
}

func TestPriorityQueueOrdersDescendingByScore(t *testing.T) {
	tr := newTestTracker(t)
	tr.AddToPriorityQueue("a", 0.3, nil)
	tr.AddToPriorityQueue("b", 0.9, nil)
	tr.AddToPriorityQueue("c", 0.5, nil)

	first, ok := tr.PopPriority()
	require.True(t, ok)
	assert.Equal(t, "b", first.OrderKey)

	second, ok := tr.PopPriority()
	require.True(t, ok)
	assert.Equal(t, "c", second.OrderKey)
}

func TestPriorityQueueReplacesExistingKey(t *testing.T) {
	tr := newTestTracker(t)
	tr.AddToPriorityQueue("a", 0.1, nil)
	tr.AddToPriorityQueue("a", 0.9, nil)

	first, ok := tr.PopPriority()
	require.True(t, ok)
	assert.Equal(t, 0.9, first.Priority)

	_, ok = tr.PopPriority()
	assert.False(t, ok)
}

func TestTrackerPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	tr1 := New(Config{PersistPath: path, MaxChainDepth: 3}, nil, nil)
	require.NoError(t, tr1.RegisterOriginal(1, "EURUSD", "G1"))

	tr2 := New(Config{PersistPath: path, MaxChainDepth: 3}, nil, nil)
	order, ok := tr2.Get(1, "EURUSD")
	require.True(t, ok)
	assert.Equal(t, "EURUSD", order.Symbol)
}
