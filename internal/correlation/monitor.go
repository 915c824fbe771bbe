package correlation

import (
	"context"
	"time"
)

// MonitorRecoveries advances every active recovery by one tick, per spec
// §4.5 "Recovery Progress Monitoring".
func (m *Manager) MonitorRecoveries(ctx context.Context) error {
	positions, err := m.br.GetAllPositions(ctx)
	if err != nil {
		return err
	}
	byTicket := make(map[int64]float64, len(positions))
	for _, p := range positions {
		byTicket[p.Ticket] = p.Profit
	}

	maxAge := time.Duration(m.cfg.MaxRecoveryTimeHours * float64(time.Hour))

	m.mu.Lock()
	active := make([]*Recovery, 0, len(m.recoveries))
	for _, r := range m.recoveries {
		if r.Status == RecoveryActive {
			active = append(active, r)
		}
	}
	m.mu.Unlock()

	for _, rec := range active {
		if time.Since(rec.EntryTime) > maxAge {
			m.closeRecovery(ctx, rec, RecoveryTimeout, 0)
			continue
		}

		basePnL, haveBase := byTicket[rec.OriginalTicket]
		hedgePnL, haveHedge := byTicket[rec.HedgeTicket]
		if !haveBase || !haveHedge {
			continue // position already closed outside this manager; tracker sync will reconcile
		}

		total := basePnL + hedgePnL
		if total >= 0 {
			m.closeRecovery(ctx, rec, RecoverySuccess, total)
			continue
		}

		if hedgePnL > 0 && m.log != nil {
			m.log.WithField("hedge_pair", rec.HedgePair).WithField("base_pair", rec.BasePair).
				Debug("hedge profitable but insufficient, adjustment hook not implemented")
		}
	}
	return nil
}

func (m *Manager) closeRecovery(ctx context.Context, rec *Recovery, status RecoveryStatus, recoveredAmount float64) {
	if _, err := m.br.ClosePosition(ctx, rec.HedgeTicket); err != nil && m.log != nil {
		m.log.WithError(err).WithField("ticket", rec.HedgeTicket).Warn("failed to close recovery hedge")
	}

	m.mu.Lock()
	rec.Status = status
	rec.RecoveredAmount = recoveredAmount
	if status == RecoverySuccess {
		m.stats.SuccessfulRecoveries++
		m.stats.RecoveredAmount += recoveredAmount
	} else if status == RecoveryTimeout {
		m.stats.TimedOutRecoveries++
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecoveriesActive.Dec()
		m.metrics.RecoveriesClosed.WithLabelValues(string(status)).Inc()
	}
}

// Rebalance computes per-currency net exposure across live positions and
// emits advisory RebalanceActions when the imbalance exceeds the
// configured threshold (spec §4.5 "Portfolio Rebalancing"). Actions are
// logged and returned for the caller to publish; nothing here executes
// trades, matching the non-destructive rebalancing hook in the spec.
func (m *Manager) Rebalance(ctx context.Context, lastRebalanceAt time.Time) ([]RebalanceAction, time.Time, error) {
	if !m.cfg.RebalancingEnabled {
		return nil, lastRebalanceAt, nil
	}
	minInterval := time.Duration(m.cfg.RebalancingFrequencyHours * float64(time.Hour))
	if time.Since(lastRebalanceAt) < minInterval {
		return nil, lastRebalanceAt, nil
	}

	positions, err := m.br.GetAllPositions(ctx)
	if err != nil {
		return nil, lastRebalanceAt, err
	}

	exposures := make(map[string]float64)
	var total float64
	for _, p := range positions {
		if len(p.Symbol) != 6 {
			continue
		}
		base, quote := p.Symbol[0:3], p.Symbol[3:6]
		signed := p.Volume
		if p.Type != "BUY" {
			signed = -signed
		}
		exposures[base] += signed
		exposures[quote] -= signed
		total += p.Volume
	}

	if total == 0 {
		return nil, lastRebalanceAt, nil
	}

	var actions []RebalanceAction
	for currency, exposure := range exposures {
		ratio := abs(exposure) / total
		if ratio > m.cfg.PortfolioBalanceThreshold {
			actions = append(actions, RebalanceAction{
				Currency:    currency,
				NetExposure: exposure,
				Severity:    ratio,
			})
		}
	}
	sortActionsBySeverity(actions)

	if len(actions) > 0 {
		if m.log != nil {
			m.log.WithField("count", len(actions)).Info("rebalancing actions emitted")
		}
		if m.metrics != nil {
			m.metrics.RebalanceEventsPublished.Add(float64(len(actions)))
		}
	}

	return actions, time.Now(), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sortActionsBySeverity(actions []RebalanceAction) {
	for i := 1; i < len(actions); i++ {
		for j := i; j > 0 && actions[j].Severity > actions[j-1].Severity; j-- {
			actions[j], actions[j-1] = actions[j-1], actions[j]
		}
	}
}
