package risk

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"FactorLens/internal/domain/models"
)

func series(asset string, factors []string, rows ...[]float64) *models.BetaSeries {
	b := &models.BetaSeries{Asset: asset, Factors: factors}
	days := tradingDays(len(rows))
	for i, r := range rows {
		b.Append(days[i], r)
	}
	return b
}

func TestScenarioPnL(t *testing.T) {
	beta := map[string]float64{"^N225": 0.8, "^VIX": -0.5, models.InterceptColumn: 3}
	s := models.ScenarioVector{"^VIX": 0.2, "^N225": -0.1, "CL=F": 0.05}

	total, contrib := ScenarioPnL(beta, s)
	assert.InDelta(t, -0.18, total, 1e-12)
	assert.InDelta(t, -0.08, contrib["^N225"], 1e-12)
	assert.InDelta(t, -0.1, contrib["^VIX"], 1e-12)
	assert.NotContains(t, contrib, models.InterceptColumn)
	assert.NotContains(t, contrib, "CL=F")
}

func TestPortfolioAttribution_EqualWeights(t *testing.T) {
	cols := []string{"^VIX", models.InterceptColumn}
	betas := map[string]*models.BetaSeries{
		"7203.T":  series("7203.T", cols, []float64{9, 9}, []float64{-1, 0.5}),
		"0700.HK": series("0700.HK", cols, []float64{-3, 0}),
	}
	s := models.ScenarioVector{"^VIX": 0.2}

	attr := PortfolioAttribution(betas, s, nil)

	assert.InDelta(t, 0.5, attr.Weights["7203.T"], 1e-12)
	assert.InDelta(t, -0.1, attr.ByAsset["7203.T"], 1e-12)
	assert.InDelta(t, -0.3, attr.ByAsset["0700.HK"], 1e-12)
	assert.InDelta(t, -0.4, attr.ByFactor["^VIX"], 1e-12)
	assert.InDelta(t, -0.4, attr.Total, 1e-12)
}

func TestPortfolioAttribution_ExplicitWeights(t *testing.T) {
	cols := []string{"^VIX", "EWJ", models.InterceptColumn}
	betas := map[string]*models.BetaSeries{
		"7203.T": series("7203.T", cols, []float64{1, 2, 0}),
		"6758.T": series("6758.T", cols, []float64{5, 5, 0}),
	}
	s := models.ScenarioVector{"^VIX": 0.1, "EWJ": -0.1}

	attr := PortfolioAttribution(betas, s, map[string]float64{"7203.T": 2})

	assert.InDelta(t, -0.2, attr.Total, 1e-12)
	assert.InDelta(t, 0.2, attr.ByFactor["^VIX"], 1e-12)
	assert.InDelta(t, -0.4, attr.ByFactor["EWJ"], 1e-12)
	assert.NotContains(t, attr.ByAsset, "6758.T")
}

func TestLatestExposures(t *testing.T) {
	cols := []string{"^VIX", models.InterceptColumn}
	exp := LatestExposures(map[string]*models.BetaSeries{
		"7203.T": series("7203.T", cols, []float64{1, 1}, []float64{2, 2}),
		"empty":  {Asset: "empty", Factors: cols},
	})
	assert.Equal(t, map[string]map[string]float64{"7203.T": {"^VIX": 2}}, exp)
}

func TestDecomposeVariance(t *testing.T) {
	n := 10
	dates := tradingDays(n)
	x := []float64{1, -1, 2, -2, 3, -3, 0.5, math.NaN(), 1, 0}
	actual := []float64{2, -1, 4, -5, 6, math.NaN(), 1, 0.3, 2.5, 0.1}
	p := newPanel(t, dates, map[string][]float64{"^VIX": x}, "^VIX")
	dm := &models.DesignMatrix{Asset: "7203.T", Region: models.RegionJP, Panel: p}
	latest := map[string]float64{"^VIX": 2, models.InterceptColumn: 100}

	split := DecomposeVariance("7203.T", dates, actual, dm, latest, 6)

	predicted := []float64{6, -6, 1, 0, 2, 0}
	observed := []float64{6, 1, 0.3, 2.5, 0.1}
	wantSys := stat.Variance(predicted, nil)
	wantTotal := stat.Variance(observed, nil)
	assert.Equal(t, 6, split.Lookback)
	assert.InDelta(t, wantSys, split.Systematic, 1e-12)
	assert.InDelta(t, wantTotal, split.Total, 1e-12)
	assert.InDelta(t, math.Max(wantTotal-wantSys, 0), split.Idiosyncratic, 1e-12)
	require.Greater(t, split.Total, 0.0)
	assert.InDelta(t, split.Systematic/split.Total, split.SystematicShare, 1e-12)
}

func TestDecomposeVariance_ClampsIdiosyncratic(t *testing.T) {
	n := 5
	dates := tradingDays(n)
	x := []float64{1, 2, 3, 4, 5}
	actual := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	dm := &models.DesignMatrix{Panel: newPanel(t, dates, map[string][]float64{"EWJ": x}, "EWJ")}

	split := DecomposeVariance("7203.T", dates, actual, dm, map[string]float64{"EWJ": 10}, 100)
	assert.Equal(t, 5, split.Lookback)
	assert.Equal(t, 0.0, split.Idiosyncratic)
	assert.Greater(t, split.Systematic, split.Total)
}

func TestAttribution_RepeatableBitForBit(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	factors := []string{"^N225", "EWJ", "JPY=X", "^VIX", "^TNX", "CL=F", "HG=F", models.InterceptColumn}
	n := 40
	dates := tradingDays(n)

	cols := make(map[string][]float64)
	beta := make(map[string]float64)
	shock := models.ScenarioVector{}
	for _, f := range factors[:len(factors)-1] {
		cols[f] = noise(r, n, 0.013)
		beta[f] = r.NormFloat64() * 1.7
		shock[f] = r.NormFloat64() * 0.07
	}
	beta[models.InterceptColumn] = 0.001
	dm := &models.DesignMatrix{Panel: newPanel(t, dates, cols, factors[:len(factors)-1]...)}
	actual := noise(r, n, 0.02)

	row := make([]float64, len(factors))
	for i, f := range factors {
		row[i] = beta[f]
	}
	betas := map[string]*models.BetaSeries{}
	for _, a := range []string{"7203.T", "6758.T", "9984.T", "005930.KS", "0700.HK", "600519.SS"} {
		betas[a] = series(a, factors, row)
	}

	wantPnL, _ := ScenarioPnL(beta, shock)
	wantAttr := PortfolioAttribution(betas, shock, nil)
	wantSplit := DecomposeVariance("7203.T", dates, actual, dm, beta, 30)
	for i := 0; i < 200; i++ {
		pnl, _ := ScenarioPnL(beta, shock)
		require.Equal(t, math.Float64bits(wantPnL), math.Float64bits(pnl))
		attr := PortfolioAttribution(betas, shock, nil)
		require.Equal(t, math.Float64bits(wantAttr.Total), math.Float64bits(attr.Total))
		split := DecomposeVariance("7203.T", dates, actual, dm, beta, 30)
		require.Equal(t, math.Float64bits(wantSplit.Systematic), math.Float64bits(split.Systematic))
	}
}
