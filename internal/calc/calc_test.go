package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipSize(t *testing.T) {
	assert.Equal(t, 0.01, PipSize("USDJPY"))
	assert.Equal(t, 0.0001, PipSize("EURUSD"))
}

func TestNetArbitragePercentRejectsBelowThreshold(t *testing.T) {
	net := NetArbitragePercent(1.1, 1.2, 1.33, [3]float64{0, 0, 0}, 0, 0, 1.0)
	assert.Equal(t, 0.0, net)
}

func TestNetArbitragePercentAcceptsAboveThreshold(t *testing.T) {
	net := NetArbitragePercent(1.1, 1.3, 1.46, [3]float64{0, 0, 0}, 0, 0, 0.5)
	assert.Greater(t, net, 0.5)
}

func TestNetArbitragePercentRejectsInvalidPrice(t *testing.T) {
	assert.Equal(t, 0.0, NetArbitragePercent(0, 1.2, 1.3, [3]float64{}, 0, 0, 0))
	assert.Equal(t, 0.0, NetArbitragePercent(1.1, 2000, 1.3, [3]float64{}, 0, 0, 0))
}

func TestClassifyPair(t *testing.T) {
	assert.Equal(t, ClassQuoteUSD, ClassifyPair("EURUSD"))
	assert.Equal(t, ClassQuoteJPY, ClassifyPair("EURJPY"))
	assert.Equal(t, ClassBaseUSD, ClassifyPair("USDCHF"))
	assert.Equal(t, ClassCross, ClassifyPair("EURGBP"))
}

func TestPipValueQuoteUSD(t *testing.T) {
	v := PipValue(PipValueInputs{Symbol: "EURUSD", LotSize: 1.0})
	assert.InDelta(t, 10.0, v, 1e-9)
}

func TestPipValueQuoteJPY(t *testing.T) {
	v := PipValue(PipValueInputs{Symbol: "EURJPY", LotSize: 1.0, USDJPY: 150})
	assert.InDelta(t, (100000*0.01)/150, v, 1e-9)
}

func TestRoundLotClampsToBounds(t *testing.T) {
	cfg := LotSizingConfig{Step: 0.01, Min: 0.01, Max: 1.0}
	assert.Equal(t, 1.0, RoundLot(5.0, cfg))
	assert.Equal(t, 0.01, RoundLot(0.001, cfg))
}

func TestWeightedCorrelationTooShortReturnsZero(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 2, 3}
	assert.Equal(t, 0.0, WeightedCorrelation(a, b, 0.05))
}

func TestWeightedCorrelationPerfectPositive(t *testing.T) {
	a := make([]float64, 20)
	b := make([]float64, 20)
	for i := range a {
		a[i] = 1.0 + float64(i)*0.001
		b[i] = 2.0 + float64(i)*0.002
	}
	corr := WeightedCorrelation(a, b, 0.05)
	assert.InDelta(t, 1.0, corr, 0.05)
}

func TestBlendedCorrelationRenormalizesOverAvailableTimeframes(t *testing.T) {
	corr := BlendedCorrelation(map[string]float64{"H1": 0.8})
	assert.Equal(t, 0.8, corr)
}

func TestClassifyRegimeDefaultsToNormalWithInsufficientHistory(t *testing.T) {
	regime := ClassifyRegime([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}, DefaultRegimeClassifierConfig())
	assert.Equal(t, RegimeNormal, regime)
}
