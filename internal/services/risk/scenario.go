package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"FactorLens/internal/domain/models"
)

// Tail selects which end of the shock factor's distribution defines stress days.
type Tail string

const (
	TailUpper Tail = "upper"
	TailLower Tail = "lower"
)

// StressQuantile is the upper-tail cutoff; the lower tail uses 1 - StressQuantile.
const StressQuantile = 0.98

// ErrUnknownTail is returned for a tail name other than upper or lower.
var ErrUnknownTail = errors.New("risk: unknown tail")

// ParseTail converts s into a Tail. An empty string means TailUpper.
func ParseTail(s string) (Tail, error) {
	switch Tail(strings.ToLower(strings.TrimSpace(s))) {
	case "", TailUpper:
		return TailUpper, nil
	case TailLower:
		return TailLower, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownTail, s)
	}
}

// GenerateScenario averages every factor over the shock factor's stress days
// and rescales the result so the shock factor moves by exactly shockSize.
func GenerateScenario(factors *models.Panel, shockFactor string, shockSize float64, tail Tail) models.ScenarioVector {
	out := models.ScenarioVector{}
	shock, ok := factors.Column(shockFactor)
	if !ok || factors.Empty() {
		return out
	}

	observed := make([]float64, 0, len(shock))
	for _, v := range shock {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		return out
	}
	sort.Float64s(observed)

	q := StressQuantile
	if tail == TailLower {
		q = 1 - StressQuantile
	}
	cutoff := Quantile(observed, q)

	var stress []int
	for i, v := range shock {
		if math.IsNaN(v) {
			continue
		}
		if (tail == TailLower && v <= cutoff) || (tail != TailLower && v >= cutoff) {
			stress = append(stress, i)
		}
	}

	means := make(map[string]float64, len(factors.Columns))
	for _, c := range factors.Columns {
		col, _ := factors.Column(c)
		sum, n := 0.0, 0
		for _, i := range stress {
			if !math.IsNaN(col[i]) {
				sum += col[i]
				n++
			}
		}
		if n > 0 {
			means[c] = sum / float64(n)
		}
	}

	scale := 1.0
	if avg := means[shockFactor]; avg != 0 {
		scale = shockSize / avg
	}
	for c, m := range means {
		out[c] = m * scale
	}
	return out
}

// Quantile returns the q-quantile of sorted using linear interpolation
// between the order statistics at q·(n-1).
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
