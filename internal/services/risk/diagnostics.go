package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"FactorLens/internal/domain/models"
)

// DefaultCollinearity is the |correlation| above which two factors are flagged.
const DefaultCollinearity = 0.7

// FactorCorrelation computes Pearson correlations between every pair of factor
// columns using the rows where both are present. Pairs with fewer than two
// shared observations, or a constant side, are NaN.
func FactorCorrelation(factors *models.Panel) models.CorrelationMatrix {
	if factors.Empty() {
		return models.CorrelationMatrix{Factors: []string{}, Values: [][]float64{}}
	}
	cols := append([]string(nil), factors.Columns...)
	k := len(cols)
	values := make([][]float64, k)
	for i := range values {
		values[i] = make([]float64, k)
	}

	xs := make([]float64, 0, factors.Len())
	ys := make([]float64, 0, factors.Len())
	for i := 0; i < k; i++ {
		a, _ := factors.Column(cols[i])
		for j := i; j < k; j++ {
			b, _ := factors.Column(cols[j])
			xs, ys = xs[:0], ys[:0]
			for r := range a {
				if math.IsNaN(a[r]) || math.IsNaN(b[r]) {
					continue
				}
				xs = append(xs, a[r])
				ys = append(ys, b[r])
			}
			rho := math.NaN()
			if len(xs) >= 2 {
				rho = stat.Correlation(xs, ys, nil)
			}
			if i == j && !math.IsNaN(rho) {
				rho = 1
			}
			values[i][j] = rho
			values[j][i] = rho
		}
	}
	return models.CorrelationMatrix{Factors: cols, Values: values}
}

// HighlyCollinear lists the distinct factor pairs with |correlation| above
// threshold, strongest first.
func HighlyCollinear(m models.CorrelationMatrix, threshold float64) []models.CorrelatedPair {
	var out []models.CorrelatedPair
	for i := range m.Factors {
		for j := i + 1; j < len(m.Factors); j++ {
			rho := m.Values[i][j]
			if math.IsNaN(rho) || math.Abs(rho) <= threshold {
				continue
			}
			out = append(out, models.CorrelatedPair{A: m.Factors[i], B: m.Factors[j], Correlation: rho})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(out[a].Correlation) > math.Abs(out[b].Correlation)
	})
	return out
}
