package calc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinAlignedBars is the minimum number of aligned closes required before a
// correlation is attempted; shorter series return 0 (spec §4.2, §7).
const MinAlignedBars = 10

// WeightedCorrelation computes a recency-decayed, exponentially weighted
// Pearson correlation between two aligned close-price return series
// (spec §3, §4.2). closesA and closesB must be the same length and index-
// aligned, oldest first. decayLambda controls how fast older samples are
// down-weighted: wi ∝ exp(-lambda * (n-1-i)).
//
// Returns 0 if the series are too short, misaligned, or either has zero
// variance.
func WeightedCorrelation(closesA, closesB []float64, decayLambda float64) float64 {
	if len(closesA) != len(closesB) || len(closesA) < MinAlignedBars {
		return 0
	}

	returnsA := pctReturns(closesA)
	returnsB := pctReturns(closesB)
	n := len(returnsA)
	if n < MinAlignedBars-1 {
		return 0
	}

	weights := make([]float64, n)
	var sumW float64
	for i := range weights {
		w := math.Exp(-decayLambda * float64(n-1-i))
		weights[i] = w
		sumW += w
	}
	if sumW == 0 {
		return 0
	}
	for i := range weights {
		weights[i] /= sumW
	}

	meanA := stat.Mean(returnsA, weights)
	meanB := stat.Mean(returnsB, weights)

	var covAB, varA, varB float64
	for i := range returnsA {
		da := returnsA[i] - meanA
		db := returnsB[i] - meanB
		covAB += weights[i] * da * db
		varA += weights[i] * da * da
		varB += weights[i] * db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}

	corr := covAB / math.Sqrt(varA*varB)
	if corr > 1 {
		corr = 1
	}
	if corr < -1 {
		corr = -1
	}
	return corr
}

func pctReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			out[i-1] = 0
			continue
		}
		out[i-1] = (closes[i] - closes[i-1]) / closes[i-1]
	}
	return out
}

// TimeframeWeight is the fixed H1/H4/D1 blend from spec §3.
var TimeframeWeight = map[string]float64{
	"H1": 0.5,
	"H4": 0.3,
	"D1": 0.2,
}

// BlendedCorrelation combines per-timeframe correlations using the fixed
// H1/H4/D1 weights, renormalizing over whichever timeframes are present.
func BlendedCorrelation(perTimeframe map[string]float64) float64 {
	var weighted, totalWeight float64
	for tf, corr := range perTimeframe {
		w, ok := TimeframeWeight[tf]
		if !ok {
			continue
		}
		weighted += w * corr
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}
