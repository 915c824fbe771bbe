// Package calc holds the engine's pure, deterministic math: arbitrage
// net-of-cost percentages, pip values, lot sizing, and weighted
// correlation (spec §4.2). Nothing in this package performs I/O.
package calc

import "math"

// PipSize returns 0.01 for JPY-quoted pairs, 0.0001 otherwise.
func PipSize(symbol string) float64 {
	if len(symbol) >= 6 && symbol[3:6] == "JPY" {
		return 0.01
	}
	return 0.0001
}

const (
	minValidPrice = 0.0001
	maxValidPrice = 1000.0
)

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= minValidPrice && p <= maxValidPrice
}

// NetArbitragePercent computes the net-of-cost arbitrage percentage for a
// triangle of three prices, per spec §4.2. Spreads are in pips (zero-value
// slice means "no spread cost"). Returns 0 if any input is invalid or the
// net percentage does not exceed thresholdPercent.
func NetArbitragePercent(p1, p2, p3 float64, spreadsPips [3]float64, commissionRate, slippagePercent, thresholdPercent float64) float64 {
	if !validPrice(p1) || !validPrice(p2) || !validPrice(p3) {
		return 0
	}

	grossPct := ((p3 - p1*p2) / (p1 * p2)) * 100

	spreadCostPct := ((spreadsPips[0] + spreadsPips[1] + spreadsPips[2]) / p3) * 100
	commissionPct := commissionRate * 3 * 100
	net := grossPct - spreadCostPct - commissionPct - slippagePercent

	if net > thresholdPercent {
		return net
	}
	return 0
}

// CrossRate returns P1*P2/P3.
func CrossRate(p1, p2, p3 float64) float64 {
	if p3 == 0 {
		return 0
	}
	return p1 * p2 / p3
}

// CurrencyClass distinguishes the pip-value formula branches of spec §4.2.
type CurrencyClass int

const (
	ClassQuoteUSD CurrencyClass = iota
	ClassQuoteJPY
	ClassBaseUSD
	ClassCross
)

// ClassifyPair determines which pip-value formula a symbol falls under.
func ClassifyPair(symbol string) CurrencyClass {
	if len(symbol) < 6 {
		return ClassCross
	}
	base, quote := symbol[0:3], symbol[3:6]
	switch {
	case quote == "JPY":
		return ClassQuoteJPY
	case quote == "USD":
		return ClassQuoteUSD
	case base == "USD":
		return ClassBaseUSD
	default:
		return ClassCross
	}
}

// PipValueInputs carries the exchange rates PipValue needs depending on
// the pair's CurrencyClass. Only the rate relevant to the pair's class
// needs to be populated.
type PipValueInputs struct {
	Symbol      string
	LotSize     float64
	USDJPY      float64 // needed when quote == JPY
	USDQuote    float64 // needed when base == USD (rate USD->quote)
	QuoteToUSD  float64 // needed for cross pairs
}

// PipValue computes the per-pip value of lotSize lots of symbol, per the
// four-case formula in spec §4.2.
func PipValue(in PipValueInputs) float64 {
	contractSize := 100_000 * in.LotSize
	pipSize := PipSize(in.Symbol)

	switch ClassifyPair(in.Symbol) {
	case ClassQuoteUSD:
		return contractSize * pipSize
	case ClassQuoteJPY:
		if in.USDJPY == 0 {
			return 0
		}
		return (contractSize * pipSize) / in.USDJPY
	case ClassBaseUSD:
		if in.USDQuote == 0 {
			return 0
		}
		return (contractSize * pipSize) / in.USDQuote
	default: // cross
		return contractSize * pipSize * in.QuoteToUSD
	}
}

// LotSizingConfig carries the rounding bounds applied to every computed lot.
type LotSizingConfig struct {
	Step float64
	Min  float64
	Max  float64
}

// RoundLot snaps a raw lot size to the configured step, clamped to [Min, Max].
func RoundLot(raw float64, cfg LotSizingConfig) float64 {
	step := cfg.Step
	if step <= 0 {
		step = 0.01
	}
	rounded := math.Round(raw/step) * step
	if rounded < cfg.Min {
		rounded = cfg.Min
	}
	if cfg.Max > 0 && rounded > cfg.Max {
		rounded = cfg.Max
	}
	return rounded
}

// UniformTriangleLotSizing computes one lot size per leg so that pip value
// is equal across legs, scaled toward targetPipValue by balance/baseBalance
// (spec §4.2).
func UniformTriangleLotSizing(pipValuesPerStdLot [3]float64, balance, baseBalance, targetPipValue float64, cfg LotSizingConfig) [3]float64 {
	multiplier := 1.0
	if baseBalance > 0 {
		multiplier = balance / baseBalance
	}
	scaledTarget := targetPipValue * multiplier

	var lots [3]float64
	for i, pipValue := range pipValuesPerStdLot {
		if pipValue <= 0 {
			lots[i] = cfg.Min
			continue
		}
		raw := scaledTarget / pipValue
		lots[i] = RoundLot(raw, cfg)
	}
	return lots
}

// RiskBasedLotSizing splits a risk budget equally across the three legs of
// a triangle and sizes each to the configured stop distance (spec §4.2).
func RiskBasedLotSizing(balance, riskPct, stopLossPips float64, pipValuePer001Lot [3]float64, cfg LotSizingConfig) [3]float64 {
	riskAmount := balance * riskPct / 100
	riskPerLeg := riskAmount / 3

	var lots [3]float64
	for i, pv := range pipValuePer001Lot {
		if pv <= 0 || stopLossPips <= 0 {
			lots[i] = cfg.Min
			continue
		}
		raw := (riskPerLeg / (stopLossPips * pv)) * 0.01
		lots[i] = RoundLot(raw, cfg)
	}
	return lots
}
