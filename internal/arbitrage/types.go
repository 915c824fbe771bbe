// Package arbitrage implements the Triangle Arbitrage Detector: triangle
// generation, regime-aware priority, opportunity evaluation, and atomic
// three-leg group execution (spec §4.4).
package arbitrage

import (
	"fmt"
	"time"

	"triarb/internal/broker"
	"triarb/internal/calc"
)

// majorMinorCurrencies is the core operating currency set (spec §3).
var majorMinorCurrencies = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "JPY": true,
	"CHF": true, "AUD": true, "CAD": true, "NZD": true,
}

// IsCoreSymbol reports whether symbol is a valid canonical pair over the
// core currency set.
func IsCoreSymbol(symbol string) bool {
	if len(symbol) != 6 {
		return false
	}
	base, quote := symbol[0:3], symbol[3:6]
	return base != quote && majorMinorCurrencies[base] && majorMinorCurrencies[quote]
}

// Triangle is an ordered triple of pairs forming a closed currency loop
// (spec §3).
type Triangle struct {
	P1, P2, P3 string
}

// String renders a stable identifier for the triangle.
func (t Triangle) String() string {
	return fmt.Sprintf("%s-%s-%s", t.P1, t.P2, t.P3)
}

// Side is a leg's trade direction.
type Side = broker.Side

// Leg is one directive within an arbitrage opportunity.
type Leg struct {
	Symbol string
	Side   Side
	Volume float64
}

// Opportunity is a validated, net-of-cost arbitrage candidate (spec §3).
type Opportunity struct {
	ID                 string
	Triangle           Triangle
	CrossRate          float64
	ProfitPotentialPct float64
	Legs               [3]Leg
	Confidence         float64
	MarketRegime       calc.Regime
	CreatedAt          time.Time
}

// GroupStatus is the lifecycle state of an ActiveGroup.
type GroupStatus string

const (
	GroupActive   GroupStatus = "active"
	GroupClosing  GroupStatus = "closing"
	GroupClosed   GroupStatus = "closed"
	GroupExpired  GroupStatus = "expired"
)

// RecoveryLink records a recovery hedge opened against one of a group's
// legs, for the group's audit trail.
type RecoveryLink struct {
	LegSymbol   string
	RecoveryKey string
	OpenedAt    time.Time
}

// ActiveGroup is the atomic execution unit of one arbitrage opportunity
// (spec §3).
type ActiveGroup struct {
	GroupID       string
	Triangle      Triangle
	Positions     []broker.Position
	CreatedAt     time.Time
	Status        GroupStatus
	RecoveryChain []RecoveryLink
}

// GroupExpiry is the fixed lifetime after which an active group is force-
// closed regardless of PnL (spec §4.4).
const GroupExpiry = 24 * time.Hour
