package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantile(t *testing.T) {
	assert.InDelta(t, 2.5, Quantile([]float64{1, 2, 3, 4}, 0.5), 1e-12)
	assert.InDelta(t, 98.02, Quantile(seq(100, 1), 0.98), 1e-9)
	assert.Equal(t, 5.0, Quantile([]float64{5}, 0.98))
	assert.Equal(t, 1.0, Quantile([]float64{1, 2}, 0))
	assert.Equal(t, 2.0, Quantile([]float64{1, 2}, 1))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestParseTail(t *testing.T) {
	tail, err := ParseTail("")
	require.NoError(t, err)
	assert.Equal(t, TailUpper, tail)

	tail, err = ParseTail("Lower")
	require.NoError(t, err)
	assert.Equal(t, TailLower, tail)

	_, err = ParseTail("sideways")
	assert.Error(t, err)
}

func scenarioPanel(t *testing.T) (shock []float64, cols map[string][]float64) {
	t.Helper()
	n := 100
	shock = seq(n, 1)
	double := make([]float64, n)
	gappy := make([]float64, n)
	partial := make([]float64, n)
	for i := range shock {
		double[i] = 2 * shock[i]
		gappy[i] = 1
		partial[i] = -shock[i]
	}
	// no observation on either upper-tail stress date
	gappy[98], gappy[99] = math.NaN(), math.NaN()
	partial[99] = math.NaN()
	return shock, map[string][]float64{"^VIX": shock, "EWJ": double, "CL=F": gappy, "HG=F": partial}
}

func TestGenerateScenario_UpperTail(t *testing.T) {
	_, cols := scenarioPanel(t)
	factors := newPanel(t, tradingDays(100), cols, "^VIX", "EWJ", "CL=F", "HG=F")

	v := GenerateScenario(factors, "^VIX", 0.2, TailUpper)

	// stress days are the shock values 99 and 100
	scale := 0.2 / 99.5
	assert.InDelta(t, 0.2, v["^VIX"], 1e-12)
	assert.InDelta(t, 199*scale, v["EWJ"], 1e-12)
	assert.InDelta(t, -99*scale, v["HG=F"], 1e-12)
	assert.NotContains(t, v, "CL=F")
	assert.Len(t, v, 3)
}

func TestGenerateScenario_PreservesCoMovement(t *testing.T) {
	_, cols := scenarioPanel(t)
	factors := newPanel(t, tradingDays(100), cols, "^VIX", "EWJ")

	small := GenerateScenario(factors, "^VIX", 0.1, TailUpper)
	large := GenerateScenario(factors, "^VIX", 0.3, TailUpper)
	assert.InDelta(t, small["EWJ"]/small["^VIX"], large["EWJ"]/large["^VIX"], 1e-12)
	assert.InDelta(t, 2, large["EWJ"]/large["^VIX"], 1e-12)
}

func TestGenerateScenario_LowerTail(t *testing.T) {
	_, cols := scenarioPanel(t)
	factors := newPanel(t, tradingDays(100), cols, "^VIX", "EWJ", "CL=F")

	v := GenerateScenario(factors, "^VIX", 0.2, TailLower)

	// stress days are the shock values 1 and 2
	assert.InDelta(t, 0.2, v["^VIX"], 1e-12)
	assert.InDelta(t, 0.4, v["EWJ"], 1e-12)
	assert.InDelta(t, 0.2/1.5, v["CL=F"], 1e-12)
}

func TestGenerateScenario_ZeroAverageKeepsRawMoves(t *testing.T) {
	n := 50
	flat := make([]float64, n)
	other := seq(n, 0)
	factors := newPanel(t, tradingDays(n), map[string][]float64{"^VIX": flat, "EWJ": other}, "^VIX", "EWJ")

	v := GenerateScenario(factors, "^VIX", 0.2, TailUpper)
	assert.Equal(t, 0.0, v["^VIX"])
	assert.InDelta(t, 24.5, v["EWJ"], 1e-12)
}

func TestGenerateScenario_MissingShockFactor(t *testing.T) {
	_, cols := scenarioPanel(t)
	factors := newPanel(t, tradingDays(100), cols, "EWJ")

	assert.Empty(t, GenerateScenario(factors, "^VIX", 0.2, TailUpper))
	assert.Empty(t, GenerateScenario(nil, "^VIX", 0.2, TailUpper))
}

func TestGenerateScenario_IgnoresMissingShockValues(t *testing.T) {
	shock, cols := scenarioPanel(t)
	withGaps := append([]float64(nil), shock...)
	withGaps[99] = math.NaN()
	cols["^VIX"] = withGaps
	factors := newPanel(t, tradingDays(100), cols, "^VIX", "EWJ")

	v := GenerateScenario(factors, "^VIX", 0.2, TailUpper)
	// 99 observations: cutoff at 97.04, so stress days are 98 and 99
	assert.InDelta(t, 0.2, v["^VIX"], 1e-12)
	assert.InDelta(t, 0.4, v["EWJ"], 1e-12)
}
