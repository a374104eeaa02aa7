package risk

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"FactorLens/internal/domain/models"
)

// ScenarioPnL returns the predicted return of one asset under s together with
// the per-factor contributions. The intercept never contributes.
func ScenarioPnL(beta map[string]float64, s models.ScenarioVector) (float64, map[string]float64) {
	contrib := make(map[string]float64)
	total := 0.0
	for _, f := range sortedKeys(beta) {
		if f == models.InterceptColumn {
			continue
		}
		b := beta[f]
		shock, ok := s[f]
		if !ok {
			continue
		}
		c := b * shock
		contrib[f] = c
		total += c
	}
	return total, contrib
}

// EqualWeights assigns 1/n to each asset.
func EqualWeights(assets []string) map[string]float64 {
	w := make(map[string]float64, len(assets))
	if len(assets) == 0 {
		return w
	}
	each := 1.0 / float64(len(assets))
	for _, a := range assets {
		w[a] = each
	}
	return w
}

// PortfolioAttribution applies s to the latest betas of every asset. Assets
// absent from weights contribute nothing; nil weights means equal weights.
func PortfolioAttribution(betas map[string]*models.BetaSeries, s models.ScenarioVector, weights map[string]float64) models.Attribution {
	if weights == nil {
		assets := make([]string, 0, len(betas))
		for a, b := range betas {
			if b.Len() > 0 {
				assets = append(assets, a)
			}
		}
		sort.Strings(assets)
		weights = EqualWeights(assets)
	}

	out := models.Attribution{
		ByFactor: make(map[string]float64),
		ByAsset:  make(map[string]float64),
		Weights:  weights,
	}
	for _, asset := range sortedKeys(betas) {
		series := betas[asset]
		w, ok := weights[asset]
		if !ok || series.Len() == 0 {
			continue
		}
		pnl, contrib := ScenarioPnL(series.Latest(), s)
		out.ByAsset[asset] = pnl * w
		for _, f := range sortedKeys(contrib) {
			out.ByFactor[f] += contrib[f] * w
		}
		out.Total += pnl * w
	}
	return out
}

// LatestExposures returns asset -> factor -> latest beta without intercepts.
func LatestExposures(betas map[string]*models.BetaSeries) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(betas))
	for asset, series := range betas {
		latest := series.Latest()
		if latest == nil {
			continue
		}
		delete(latest, models.InterceptColumn)
		out[asset] = latest
	}
	return out
}

// DecomposeVariance splits the variance of an asset's recent returns into a
// part explained by its latest betas and a residual. The latest betas are
// applied across the whole lookback.
func DecomposeVariance(asset string, dates []time.Time, actual []float64, design *models.DesignMatrix, latest map[string]float64, lookback int) models.VarianceSplit {
	out := models.VarianceSplit{Asset: asset, Lookback: lookback}
	n := len(actual)
	if n == 0 || lookback <= 0 || design == nil || design.Panel == nil {
		return out
	}
	start := n - lookback
	if start < 0 {
		start = 0
	}

	predicted := make([]float64, 0, n-start)
	observed := make([]float64, 0, n-start)
	for i := start; i < n; i++ {
		if !math.IsNaN(actual[i]) {
			observed = append(observed, actual[i])
		}
		row := design.IndexOf(dates[i])
		sum := 0.0
		for _, f := range design.Columns {
			b, ok := latest[f]
			if !ok || row < 0 {
				continue
			}
			col, _ := design.Column(f)
			if math.IsNaN(col[row]) {
				continue
			}
			sum += b * col[row]
		}
		predicted = append(predicted, sum)
	}

	out.Lookback = n - start
	out.Systematic = sampleVariance(predicted)
	out.Total = sampleVariance(observed)
	out.Idiosyncratic = math.Max(out.Total-out.Systematic, 0)
	if out.Total > 0 {
		out.SystematicShare = out.Systematic / out.Total
		out.IdiosyncraticShare = out.Idiosyncratic / out.Total
	}
	return out
}

// sortedKeys fixes the summation order so repeated calls agree bit for bit.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sampleVariance(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return stat.Variance(v, nil)
}
