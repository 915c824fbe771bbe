package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"triarb/internal/advisor"
	"triarb/internal/broker"
)

// FindHedgeCandidates enumerates and scores hedge candidates for a losing
// basePair position, per spec §4.5 "Hedge Candidate Search". lossAmount
// is expected as a positive magnitude; basePrice is the current quote.
func (m *Manager) FindHedgeCandidates(ctx context.Context, basePair string, originalSide broker.Side, lossAmount, basePrice float64) []HedgeCandidate {
	var candidates []HedgeCandidate

	for _, hedgePair := range m.correlatedPairs(basePair) {
		corr := m.GetCorrelation(ctx, basePair, hedgePair)
		absCorr := math.Abs(corr)
		if absCorr < m.cfg.MinCorr || absCorr > m.cfg.MaxCorr {
			continue
		}

		hedgeRatio := 1 / absCorr
		if corr < 0 {
			hedgeRatio *= 1.2
		}
		if hedgeRatio < 0.5 || hedgeRatio > 2.0 {
			continue
		}

		if basePrice <= 0 {
			continue
		}
		baseVolume := lossAmount / (basePrice * 0.01)
		hedgeVolume := clamp(baseVolume*hedgeRatio, 0.01, 10.0)

		potential := absCorr * (1 - math.Abs(hedgeRatio-1/absCorr)/(1/absCorr))
		if potential < 0 {
			potential = 0
		}

		direction := DirectionOpposite
		hedgeSide := oppositeSide(originalSide)
		if corr < 0 {
			direction = DirectionSame
			hedgeSide = originalSide
		}

		candidates = append(candidates, HedgeCandidate{
			BasePair:          basePair,
			HedgePair:         hedgePair,
			Correlation:       corr,
			HedgeRatio:        hedgeRatio,
			HedgeVolume:       hedgeVolume,
			RecoveryPotential: potential,
			PriorityScore:     absCorr * potential,
			Direction:         direction,
			HedgeSide:         hedgeSide,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PriorityScore > candidates[j].PriorityScore
	})
	if len(candidates) > 5 {
		candidates = candidates[:5]
	}
	return candidates
}

func oppositeSide(s broker.Side) broker.Side {
	if s == broker.SideBuy {
		return broker.SideSell
	}
	return broker.SideBuy
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ExecuteRecovery places the hedge leg for an accepted candidate, subject
// to advisor go-ahead (confidence > MinConfidenceToExecute), registers it
// with the Order Tracker, and stores the recovery record (spec §4.5
// "Execution").
func (m *Manager) ExecuteRecovery(ctx context.Context, cand HedgeCandidate, originalTicket int64) (*Recovery, error) {
	req := advisor.AdvisorRequest{
		Kind:   "recovery",
		Symbol: cand.HedgePair,
		Context: map[string]interface{}{
			"base_pair":          cand.BasePair,
			"correlation":        cand.Correlation,
			"recovery_potential": cand.RecoveryPotential,
		},
	}
	resp, err := m.adv.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.Approve || resp.Confidence <= m.cfg.MinConfidenceToExecute {
		return nil, fmt.Errorf("advisor declined recovery: confidence %.2f", resp.Confidence)
	}

	comment := fmt.Sprintf("R%d_%s", originalTicket, cand.BasePair)
	order := &broker.OrderRequest{
		Symbol:  m.symbols.GetReal(cand.HedgePair),
		Side:    cand.HedgeSide,
		Volume:  cand.HedgeVolume,
		Comment: comment,
	}
	res, err := m.br.PlaceOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if res == nil || !res.IsFilled() {
		return nil, fmt.Errorf("hedge order not filled")
	}

	if err := m.trk.RegisterRecovery(res.Ticket, cand.HedgePair, originalTicket, cand.BasePair); err != nil && m.log != nil {
		m.log.WithError(err).Warn("failed to register recovery order with tracker")
	}

	rec := &Recovery{
		BasePair:       cand.BasePair,
		HedgePair:      cand.HedgePair,
		OriginalTicket: originalTicket,
		HedgeTicket:    res.Ticket,
		Ratio:          cand.HedgeRatio,
		Correlation:    cand.Correlation,
		Direction:      cand.Direction,
		EntryTime:      time.Now(),
		Potential:      cand.RecoveryPotential,
		Status:         RecoveryActive,
	}

	m.mu.Lock()
	m.recoveries[fmt.Sprintf("%d_%s", res.Ticket, cand.HedgePair)] = rec
	m.stats.TotalRecoveries++
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.HedgesExecuted.Inc()
		m.metrics.RecoveriesActive.Inc()
	}
	return rec, nil
}
