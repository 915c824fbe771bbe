package calc

import (
	talib "github.com/markcheno/go-talib"
)

// Regime is the market condition the Detector and Coordinator key their
// presets on (spec §4.4).
type Regime string

const (
	RegimeVolatile Regime = "volatile"
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeNormal   Regime = "normal"
)

// RegimeThresholds holds the per-regime profit-percentage threshold and
// timeout preset (spec §4.4). The spec's "1.2/1.0/0.8/0.8 pips" labels are
// the comment original_source carries; the value it actually compares
// against a percentage-valued profit potential is 100x smaller
// (original_source/trading/arbitrage_detector.py: 0.012/0.010/0.008/0.008).
var RegimeThresholds = map[Regime]struct {
	ThresholdPips float64
	TimeoutMS     int
}{
	RegimeVolatile: {ThresholdPips: 0.012, TimeoutMS: 500},
	RegimeTrending: {ThresholdPips: 0.010, TimeoutMS: 400},
	RegimeRanging:  {ThresholdPips: 0.008, TimeoutMS: 300},
	RegimeNormal:   {ThresholdPips: 0.008, TimeoutMS: 300},
}

// RegimeClassifierConfig tunes the ATR/RSI thresholds used to derive a
// default regime when no external advisory feed overrides it.
type RegimeClassifierConfig struct {
	ATRPeriod         int
	ATRAvgPeriod      int
	ATRVolatileMult   float64
	RSIPeriod         int
	RSITrendDistance  float64
	MinBars           int
}

// DefaultRegimeClassifierConfig mirrors original_source's defaults.
func DefaultRegimeClassifierConfig() RegimeClassifierConfig {
	return RegimeClassifierConfig{
		ATRPeriod:        14,
		ATRAvgPeriod:     50,
		ATRVolatileMult:  1.5,
		RSIPeriod:        14,
		RSITrendDistance: 15,
		MinBars:          60,
	}
}

// ClassifyRegime derives a market regime from H1 OHLC history using ATR
// (volatility) and RSI distance-from-50 (trend strength), matching
// original_source's regime computation (SPEC_FULL §5.2). This is advisory
// and overridable by an external regime feed.
func ClassifyRegime(high, low, close []float64, cfg RegimeClassifierConfig) Regime {
	if len(close) < cfg.MinBars {
		return RegimeNormal
	}

	atr := talib.Atr(high, low, close, cfg.ATRPeriod)
	rsi := talib.Rsi(close, cfg.RSIPeriod)

	latestATR := lastValid(atr)
	avgATR := meanTail(atr, cfg.ATRAvgPeriod)
	latestRSI := lastValid(rsi)

	if avgATR > 0 && latestATR > avgATR*cfg.ATRVolatileMult {
		return RegimeVolatile
	}

	trendStrength := latestRSI - 50
	if trendStrength < 0 {
		trendStrength = -trendStrength
	}
	if trendStrength > cfg.RSITrendDistance {
		return RegimeTrending
	}

	recentRange := rangeOf(close[len(close)-20:])
	avgClose := meanTail(close, 20)
	if avgClose > 0 && recentRange/avgClose < 0.002 {
		return RegimeRanging
	}

	return RegimeNormal
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] { // not NaN
			return series[i]
		}
	}
	return 0
}

func meanTail(series []float64, n int) float64 {
	if len(series) == 0 {
		return 0
	}
	if n > len(series) {
		n = len(series)
	}
	tail := series[len(series)-n:]
	var sum float64
	var count int
	for _, v := range tail {
		if v == v {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func rangeOf(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	min, max := series[0], series[0]
	for _, v := range series {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}
