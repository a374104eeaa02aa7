package api

import (
	"math"
	"time"

	"FactorLens/internal/domain/models"
)

// JSON cannot carry NaN, so missing cells are rendered as null.
func nullable(v []float64) []*float64 {
	out := make([]*float64, len(v))
	for i := range v {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			continue
		}
		x := v[i]
		out[i] = &x
	}
	return out
}

func dates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Format(time.DateOnly)
	}
	return out
}

type betaSeriesView struct {
	Asset   string             `json:"asset"`
	Factors []string           `json:"factors"`
	Dates   []string           `json:"dates"`
	Rows    [][]*float64       `json:"rows"`
	Latest  map[string]float64 `json:"latest"`
	AsOf    string             `json:"as_of,omitempty"`
}

func newBetaSeriesView(b *models.BetaSeries) betaSeriesView {
	v := betaSeriesView{
		Asset:   b.Asset,
		Factors: b.Factors,
		Dates:   dates(b.Dates),
		Rows:    make([][]*float64, len(b.Rows)),
		Latest:  b.Latest(),
	}
	for i, r := range b.Rows {
		v.Rows[i] = nullable(r)
	}
	if b.Len() > 0 {
		v.AsOf = b.LatestDate().Format(time.DateOnly)
	}
	return v
}

type designView struct {
	Asset   string                `json:"asset"`
	Region  models.Region         `json:"region"`
	Lagged  []string              `json:"lagged"`
	Columns []string              `json:"columns"`
	Dates   []string              `json:"dates"`
	Values  map[string][]*float64 `json:"values"`
}

func newDesignView(dm *models.DesignMatrix) designView {
	v := designView{
		Asset:   dm.Asset,
		Region:  dm.Region,
		Lagged:  dm.Lagged,
		Columns: []string{},
		Dates:   []string{},
		Values:  map[string][]*float64{},
	}
	if v.Lagged == nil {
		v.Lagged = []string{}
	}
	if dm.Panel == nil {
		return v
	}
	v.Columns = append(v.Columns, dm.Columns...)
	v.Dates = dates(dm.Dates)
	for _, c := range dm.Columns {
		v.Values[c] = nullable(dm.Values[c])
	}
	return v
}

type correlationView struct {
	Factors   []string                `json:"factors"`
	Values    [][]*float64            `json:"values"`
	Threshold float64                 `json:"threshold"`
	Pairs     []models.CorrelatedPair `json:"pairs"`
}
