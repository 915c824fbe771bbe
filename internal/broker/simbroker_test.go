package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimBrokerPlaceAndCloseOrder(t *testing.T) {
	ctx := context.Background()
	b := NewSimBroker([]string{"EURUSD"}, 10000)
	b.SetPrice("EURUSD", 1.1000)
	b.SetSpread("EURUSD", 1.2)

	res, err := b.PlaceOrder(ctx, &OrderRequest{Symbol: "EURUSD", Side: SideBuy, Volume: 1.0})
	require.NoError(t, err)
	require.True(t, res.IsFilled())

	positions, err := b.GetAllPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, res.Ticket, positions[0].Ticket)

	b.SetPrice("EURUSD", 1.1050)
	close, err := b.ClosePosition(ctx, res.Ticket)
	require.NoError(t, err)
	assert.True(t, close.Success)
	assert.InDelta(t, 0.005, close.RealizedPL, 1e-9)

	positions, err = b.GetAllPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSimBrokerPlaceOrderUnknownSymbol(t *testing.T) {
	b := NewSimBroker(nil, 1000)
	res, err := b.PlaceOrder(context.Background(), &OrderRequest{Symbol: "GBPJPY", Side: SideSell, Volume: 1})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestSimBrokerClosePositionNotFound(t *testing.T) {
	b := NewSimBroker(nil, 1000)
	res, err := b.ClosePosition(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestSimBrokerHistoricalDataTruncatesToCount(t *testing.T) {
	b := NewSimBroker(nil, 1000)
	bars := make([]Bar, 20)
	for i := range bars {
		bars[i] = Bar{Close: float64(i)}
	}
	b.SetBars("EURUSD", bars)

	got, err := b.GetHistoricalData(context.Background(), "EURUSD", TimeframeH1, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 19.0, got[4].Close)
}
