// Package correlation implements the Correlation & Recovery Engine: a
// rolling correlation matrix across major/minor pairs, hedge-candidate
// search for losing positions, recovery execution, recovery-progress
// monitoring, and portfolio rebalancing advisories (spec §4.5).
package correlation

import (
	"time"

	"triarb/internal/broker"
)

// Config carries the Manager's tunables, per spec §4.5 and its Appendix defaults.
type Config struct {
	MinCorr                   float64
	MaxCorr                   float64
	LookbackDays              int
	RefreshInterval           time.Duration
	MaxRecoveryTimeHours      float64
	RebalancingEnabled        bool
	RebalancingFrequencyHours float64
	PortfolioBalanceThreshold float64
	DecayLambda               float64
	MinConfidenceToExecute    float64
}

// DefaultConfig matches spec §4.5's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinCorr:                   0.6,
		MaxCorr:                   0.95,
		LookbackDays:              30,
		RefreshInterval:           5 * time.Minute,
		MaxRecoveryTimeHours:      24,
		RebalancingEnabled:        true,
		RebalancingFrequencyHours: 6,
		PortfolioBalanceThreshold: 0.10,
		DecayLambda:               0.05,
		// Spec's literal advisory threshold is 0.6, but PassthroughAdvisor's
		// neutral confidence is 0.5 and must keep the engine fully
		// functional with no scoring engine configured (SPEC_FULL §5.6).
		// A deployment wiring a real scoring engine can raise this back to
		// 0.6 or higher.
		MinConfidenceToExecute: 0.4,
	}
}

// Direction is the hedge side relative to the original position's side.
type Direction string

const (
	DirectionOpposite Direction = "opposite"
	DirectionSame     Direction = "same"
)

// HedgeCandidate is a scored, validated recovery option for a losing
// position (spec §4.5 "Hedge Candidate Search").
type HedgeCandidate struct {
	BasePair          string
	HedgePair         string
	Correlation       float64
	HedgeRatio        float64
	HedgeVolume       float64
	RecoveryPotential float64
	PriorityScore     float64
	Direction         Direction
	HedgeSide         broker.Side
}

// RecoveryStatus is the lifecycle state of an active recovery record.
type RecoveryStatus string

const (
	RecoveryActive  RecoveryStatus = "active"
	RecoverySuccess RecoveryStatus = "success"
	RecoveryTimeout RecoveryStatus = "timeout"
)

// Recovery is the record kept for an executed hedge (spec §4.5 "Execution" step 3).
type Recovery struct {
	BasePair         string
	HedgePair        string
	OriginalTicket   int64
	HedgeTicket      int64
	Ratio            float64
	Correlation      float64
	Direction        Direction
	EntryTime        time.Time
	Potential        float64
	Status           RecoveryStatus
	RecoveredAmount  float64
}

// RebalanceAction is an advisory emitted when a currency's net exposure
// exceeds the configured imbalance threshold (spec §4.5 "Portfolio Rebalancing").
type RebalanceAction struct {
	Currency    string
	NetExposure float64
	Severity    float64
}

// Stats summarizes the Manager's running counters.
type Stats struct {
	TotalRecoveries      int
	SuccessfulRecoveries int
	TimedOutRecoveries   int
	RecoveredAmount      float64
	LastRebalanceAt      time.Time
}
