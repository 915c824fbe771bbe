// Package broker defines the facade the engine uses to talk to the FX
// broker and the domain types that cross that boundary.
package broker

import (
	"context"
	"time"
)

// Side identifies a position/order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Timeframe identifies a historical-bar resolution.
type Timeframe string

const (
	TimeframeM1  Timeframe = "M1"
	TimeframeM5  Timeframe = "M5"
	TimeframeM15 Timeframe = "M15"
	TimeframeM30 Timeframe = "M30"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

// SuccessRetcode is the broker sentinel for a filled order (spec §6.1).
const SuccessRetcode = 10009

// Credentials optionally authenticates a Connect call.
type Credentials struct {
	Login    string
	Password string
	Server   string
}

// Bar is one OHLC sample of historical data, indexed by Time.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Position is an open broker position.
type Position struct {
	Ticket       int64
	Symbol       string
	Type         Side
	Volume       float64
	Price        float64
	CurrentPrice float64
	SL           float64
	TP           float64
	Profit       float64
	Swap         float64
	Time         time.Time
	Magic        int64
	Comment      string
}

// OrderRequest places a new market or pending order.
type OrderRequest struct {
	Symbol  string
	Side    Side
	Volume  float64
	Price   float64 // 0 means market order
	SL      float64
	TP      float64
	Comment string
	Magic   int64
}

// OrderResult reports the outcome of PlaceOrder or ClosePosition.
type OrderResult struct {
	Success   bool
	Ticket    int64
	ErrorCode int
	ErrorMsg  string
	Retcode   int
}

// IsFilled reports whether the result carries the broker's success sentinel.
func (r *OrderResult) IsFilled() bool {
	return r.Success && r.Retcode == SuccessRetcode
}

// CloseResult reports the outcome of closing a position.
type CloseResult struct {
	Success    bool
	RealizedPL float64
	ErrorCode  int
	ErrorMsg   string
}

// Broker is the synchronous facade the engine consumes (spec §6.1). Every
// call may block up to a broker timeout; callers tolerate per-call failure
// by logging and continuing rather than treating it as fatal, except where
// noted for Connect.
type Broker interface {
	Connect(ctx context.Context, creds *Credentials) (bool, error)
	GetAvailablePairs(ctx context.Context) ([]string, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, bool, error)
	GetSpread(ctx context.Context, symbol string) (float64, error)
	GetHistoricalData(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error)
	GetAccountBalance(ctx context.Context) (float64, error)
	GetAccountEquity(ctx context.Context) (float64, error)
	GetFreeMargin(ctx context.Context) (float64, error)
	GetAllPositions(ctx context.Context) ([]Position, error)
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	ClosePosition(ctx context.Context, ticket int64) (*CloseResult, error)
}
