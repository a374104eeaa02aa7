package risk

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"FactorLens/internal/domain/models"
)

func tradingDays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func newPanel(t *testing.T, dates []time.Time, cols map[string][]float64, order ...string) *models.Panel {
	t.Helper()
	p, err := models.NewPanel(dates, nil)
	require.NoError(t, err)
	for _, c := range order {
		require.NoError(t, p.Set(c, cols[c]))
	}
	return p
}

func noise(r *rand.Rand, n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.NormFloat64() * scale
	}
	return out
}

// asiaFixture returns a Tokyo stock driven by the Nikkei and the previous
// session's VIX. The first stock observation is missing.
func asiaFixture(t *testing.T, n int) (stocks, factors *models.Panel) {
	t.Helper()
	r := rand.New(rand.NewSource(7))
	dates := tradingDays(n)
	nikkei := noise(r, n, 1)
	vix := noise(r, n, 1)
	eps := noise(r, n, 0.01)

	stock := make([]float64, n)
	stock[0] = math.NaN()
	for i := 1; i < n; i++ {
		stock[i] = 0.8*nikkei[i] - 0.3*vix[i-1] + 0.05 + eps[i]
	}

	factors = newPanel(t, dates, map[string][]float64{"^N225": nikkei, "^VIX": vix}, "^N225", "^VIX")
	stocks = newPanel(t, dates, map[string][]float64{"7203.T": stock}, "7203.T")
	return stocks, factors
}

// assertSameSeries compares two series treating NaN as equal to NaN.
func assertSameSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			require.True(t, math.IsNaN(got[i]), "row %d", i)
			continue
		}
		require.Equal(t, want[i], got[i], "row %d", i)
	}
}
