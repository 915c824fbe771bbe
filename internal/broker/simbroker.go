package broker

import (
	"context"
	"sync"
	"time"

	"triarb/internal/errors"
)

// SimBroker is a deterministic in-memory Broker fixture. It is test/demo
// infrastructure (SPEC_FULL §7), not a production broker integration.
type SimBroker struct {
	mu sync.Mutex

	connected bool
	pairs     []string
	prices    map[string]float64
	spreads   map[string]float64
	bars      map[string][]Bar

	balance    float64
	equity     float64
	freeMargin float64

	positions  map[int64]*Position
	nextTicket int64
}

// NewSimBroker builds a SimBroker seeded with the given pairs and starting
// balance. Callers set prices, spreads and bars through SetPrice, SetSpread
// and SetBars between calls to simulate market movement.
func NewSimBroker(pairs []string, startingBalance float64) *SimBroker {
	return &SimBroker{
		pairs:      append([]string(nil), pairs...),
		prices:     make(map[string]float64),
		spreads:    make(map[string]float64),
		bars:       make(map[string][]Bar),
		balance:    startingBalance,
		equity:     startingBalance,
		freeMargin: startingBalance,
		positions:  make(map[int64]*Position),
		nextTicket: 1000,
	}
}

// SetPrice sets the current bid price for a symbol (test fixture hook).
func (s *SimBroker) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetSpread sets the spread in pips for a symbol (test fixture hook).
func (s *SimBroker) SetSpread(symbol string, spreadPips float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spreads[symbol] = spreadPips
}

// SetBars sets historical bars for a symbol (test fixture hook).
func (s *SimBroker) SetBars(symbol string, bars []Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = bars
}

func (s *SimBroker) Connect(ctx context.Context, creds *Credentials) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return true, nil
}

func (s *SimBroker) GetAvailablePairs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pairs...), nil
}

func (s *SimBroker) GetCurrentPrice(ctx context.Context, symbol string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[symbol]
	return price, ok, nil
}

func (s *SimBroker) GetSpread(ctx context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spread, ok := s.spreads[symbol]
	if !ok {
		return 0, errors.NewAppError(errors.ErrCodeSymbolUnmapped, "no spread for symbol", nil).WithContext("symbol", symbol)
	}
	return spread, nil
}

func (s *SimBroker) GetHistoricalData(ctx context.Context, symbol string, tf Timeframe, count int) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.bars[symbol]
	if len(bars) > count {
		return append([]Bar(nil), bars[len(bars)-count:]...), nil
	}
	return append([]Bar(nil), bars...), nil
}

func (s *SimBroker) GetAccountBalance(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

func (s *SimBroker) GetAccountEquity(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equity, nil
}

func (s *SimBroker) GetFreeMargin(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeMargin, nil
}

func (s *SimBroker) GetAllPositions(ctx context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (s *SimBroker) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, ok := s.prices[req.Symbol]
	if !ok {
		return &OrderResult{Success: false, ErrorCode: 10004, ErrorMsg: "unknown symbol"}, nil
	}
	if req.Price != 0 {
		price = req.Price
	}

	ticket := s.nextTicket
	s.nextTicket++

	s.positions[ticket] = &Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Type:         req.Side,
		Volume:       req.Volume,
		Price:        price,
		CurrentPrice: price,
		SL:           req.SL,
		TP:           req.TP,
		Time:         time.Now(),
		Magic:        req.Magic,
		Comment:      req.Comment,
	}

	return &OrderResult{Success: true, Ticket: ticket, Retcode: SuccessRetcode}, nil
}

func (s *SimBroker) ClosePosition(ctx context.Context, ticket int64) (*CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[ticket]
	if !ok {
		return &CloseResult{Success: false, ErrorCode: 10013, ErrorMsg: "position not found"}, nil
	}
	delete(s.positions, ticket)

	current, ok := s.prices[pos.Symbol]
	if !ok {
		current = pos.Price
	}
	var pl float64
	if pos.Type == SideBuy {
		pl = (current - pos.Price) * pos.Volume
	} else {
		pl = (pos.Price - current) * pos.Volume
	}
	s.balance += pl
	s.equity = s.balance

	return &CloseResult{Success: true, RealizedPL: pl}, nil
}

var _ Broker = (*SimBroker)(nil)
