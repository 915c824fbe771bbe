package broker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"triarb/internal/logging"
)

// Guarded wraps a Broker with a circuit breaker that opens after a run of
// consecutive failed calls (any returned error counts), per spec §7 /
// SPEC_FULL §5.4. While open, calls fail
// fast with gobreaker.ErrOpenState instead of hitting the broker, and
// callers treat that the same as a transient failure: log and skip.
type Guarded struct {
	inner Broker
	cb    *gobreaker.CircuitBreaker
	log   *logging.Logger
}

// GuardConfig tunes the breaker's trip threshold and cooldown.
type GuardConfig struct {
	Name             string
	ConsecutiveTrips uint32
	OpenTimeout      time.Duration
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:             "broker",
		ConsecutiveTrips: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// NewGuarded builds a circuit-breaker-wrapped Broker.
func NewGuarded(inner Broker, cfg GuardConfig, log *logging.Logger) *Guarded {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.WithField("breaker", name).
					WithField("from", from.String()).
					WithField("to", to.String()).
					Warn("broker circuit breaker state change")
			}
		},
	}
	return &Guarded{inner: inner, cb: gobreaker.NewCircuitBreaker(settings), log: log}
}

func (g *Guarded) call(fn func() (interface{}, error)) (interface{}, error) {
	return g.cb.Execute(fn)
}

func (g *Guarded) Connect(ctx context.Context, creds *Credentials) (bool, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.Connect(ctx, creds) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (g *Guarded) GetAvailablePairs(ctx context.Context) ([]string, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetAvailablePairs(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (g *Guarded) GetCurrentPrice(ctx context.Context, symbol string) (float64, bool, error) {
	type result struct {
		price float64
		ok    bool
	}
	v, err := g.call(func() (interface{}, error) {
		price, ok, err := g.inner.GetCurrentPrice(ctx, symbol)
		return result{price, ok}, err
	})
	if err != nil {
		return 0, false, err
	}
	r := v.(result)
	return r.price, r.ok, nil
}

func (g *Guarded) GetSpread(ctx context.Context, symbol string) (float64, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetSpread(ctx, symbol) })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (g *Guarded) GetHistoricalData(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetHistoricalData(ctx, symbol, tf, count) })
	if err != nil {
		return nil, err
	}
	return v.([]Bar), nil
}

func (g *Guarded) GetAccountBalance(ctx context.Context) (float64, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetAccountBalance(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (g *Guarded) GetAccountEquity(ctx context.Context) (float64, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetAccountEquity(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (g *Guarded) GetFreeMargin(ctx context.Context) (float64, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetFreeMargin(ctx) })
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (g *Guarded) GetAllPositions(ctx context.Context) ([]Position, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.GetAllPositions(ctx) })
	if err != nil {
		return nil, err
	}
	return v.([]Position), nil
}

func (g *Guarded) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.PlaceOrder(ctx, req) })
	if err != nil {
		return nil, err
	}
	return v.(*OrderResult), nil
}

func (g *Guarded) ClosePosition(ctx context.Context, ticket int64) (*CloseResult, error) {
	v, err := g.call(func() (interface{}, error) { return g.inner.ClosePosition(ctx, ticket) })
	if err != nil {
		return nil, err
	}
	return v.(*CloseResult), nil
}

var _ Broker = (*Guarded)(nil)
