package risk

import (
	"math"

	"FactorLens/internal/domain/models"
)

// DefaultCoverage is the minimum non-missing fraction a design column needs to be kept.
const DefaultCoverage = 0.85

// Selector resolves which factor columns explain an asset.
type Selector struct {
	universe *Universe
	coverage float64
}

// NewSelector creates a Selector. A coverage outside (0, 1] falls back to DefaultCoverage.
func NewSelector(u *Universe, coverage float64) *Selector {
	if u == nil {
		u = DefaultUniverse()
	}
	if coverage <= 0 || coverage > 1 {
		coverage = DefaultCoverage
	}
	return &Selector{universe: u, coverage: coverage}
}

// Coverage returns the configured column coverage threshold.
func (s *Selector) Coverage() float64 { return s.coverage }

// Columns returns the candidate design columns for region, before lagging and
// coverage filtering.
func (s *Selector) Columns(region models.Region, factors *models.Panel) []string {
	cols := make([]string, 0, 2+len(s.universe.Global))
	if c, ok := firstPresent(s.universe.IndexPref[region], factors); ok {
		cols = append(cols, c)
	}
	if c, ok := firstPresent(s.universe.FXPref[region], factors); ok {
		cols = append(cols, c)
	}
	for _, g := range s.universe.Global {
		if factors.Has(g) {
			cols = append(cols, g)
		}
	}
	return cols
}

// BuildDesignMatrix slices factors to the asset's columns, lags US-session
// factors for Asian regions and drops sparsely covered columns.
func (s *Selector) BuildDesignMatrix(asset string, region models.Region, factors *models.Panel) *models.DesignMatrix {
	dm := &models.DesignMatrix{Asset: asset, Region: region}
	if factors.Empty() {
		dm.Panel = &models.Panel{Values: map[string][]float64{}}
		return dm
	}

	p := factors.Select(s.Columns(region, factors))
	if IsAsian(region) {
		for _, c := range p.Columns {
			if !s.universe.IsUSTimed(c) {
				continue
			}
			p.Values[c] = shift(p.Values[c])
			dm.Lagged = append(dm.Lagged, c)
		}
	}

	var sparse []string
	for _, c := range p.Columns {
		if p.Coverage(c) < s.coverage {
			sparse = append(sparse, c)
		}
	}
	if len(sparse) > 0 {
		p.Drop(sparse...)
		dm.Lagged = without(dm.Lagged, sparse)
	}

	dm.Panel = p
	return dm
}

func firstPresent(candidates []string, p *models.Panel) (string, bool) {
	for _, c := range candidates {
		if p.Has(c) {
			return c, true
		}
	}
	return "", false
}

// shift moves every value one row later; the first row becomes missing.
func shift(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	out[0] = math.NaN()
	copy(out[1:], v[:len(v)-1])
	return out
}

func without(list, drop []string) []string {
	if len(list) == 0 {
		return list
	}
	skip := make(map[string]struct{}, len(drop))
	for _, d := range drop {
		skip[d] = struct{}{}
	}
	out := list[:0]
	for _, v := range list {
		if _, ok := skip[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
