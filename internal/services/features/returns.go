package features

import (
	"fmt"
	"math"
	"time"

	"FactorLens/internal/domain/models"
)

// MaxFactorMissing is the largest missing fraction a factor return column may
// have before it is dropped.
const MaxFactorMissing = 0.20

// ReturnSpec splits a price panel into stock and factor columns.
type ReturnSpec struct {
	Tickers []string
	Factors []string
	// LevelChange lists factors quoted as levels (yields); their move is the
	// first difference divided by 100 instead of a percentage change.
	LevelChange map[string]bool
}

// BuildReturnPanels turns close prices into daily stock and factor returns.
// Prices are forward-filled and rows still missing any value are dropped before
// differencing, so the first returned row is always missing.
func BuildReturnPanels(prices *models.Panel, spec ReturnSpec) (stocks, factors *models.Panel, err error) {
	if prices.Empty() {
		return emptyPanel(), emptyPanel(), nil
	}

	wanted := make([]string, 0, len(spec.Tickers)+len(spec.Factors))
	wanted = append(wanted, spec.Tickers...)
	wanted = append(wanted, spec.Factors...)
	filled := prices.Select(wanted)
	for _, c := range filled.Columns {
		forwardFill(filled.Values[c])
	}
	rows := completeRows(filled)
	dates := make([]time.Time, len(rows))
	for i, r := range rows {
		dates[i] = filled.Dates[r]
	}

	stocks, err = models.NewPanel(dates, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build stock returns: %w", err)
	}
	factors, err = models.NewPanel(dates, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build factor returns: %w", err)
	}

	for _, t := range spec.Tickers {
		col, ok := filled.Column(t)
		if !ok || stocks.Has(t) {
			continue
		}
		if err := stocks.Set(t, PctChange(pick(col, rows))); err != nil {
			return nil, nil, err
		}
	}
	for _, f := range spec.Factors {
		col, ok := filled.Column(f)
		if !ok || factors.Has(f) {
			continue
		}
		px := pick(col, rows)
		var ret []float64
		if spec.LevelChange[f] {
			ret = LevelChange(px)
		} else {
			ret = PctChange(px)
		}
		if missingFraction(ret) > MaxFactorMissing {
			continue
		}
		if err := factors.Set(f, ret); err != nil {
			return nil, nil, err
		}
	}
	return stocks, factors, nil
}

// PctChange returns x[i]/x[i-1] - 1. Infinite results become missing.
func PctChange(px []float64) []float64 {
	out := make([]float64, len(px))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = finite(px[i]/px[i-1] - 1)
	}
	return out
}

// LevelChange returns (x[i] - x[i-1]) / 100.
func LevelChange(px []float64) []float64 {
	out := make([]float64, len(px))
	for i := range out {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = finite((px[i] - px[i-1]) / 100.0)
	}
	return out
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func forwardFill(v []float64) {
	last := math.NaN()
	for i, x := range v {
		if math.IsNaN(x) {
			v[i] = last
			continue
		}
		last = x
	}
}

func completeRows(p *models.Panel) []int {
	rows := make([]int, 0, p.Len())
	for i := 0; i < p.Len(); i++ {
		ok := true
		for _, c := range p.Columns {
			if math.IsNaN(p.Values[c][i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

func pick(v []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = v[r]
	}
	return out
}

func missingFraction(v []float64) float64 {
	if len(v) == 0 {
		return 1
	}
	n := 0
	for _, x := range v {
		if math.IsNaN(x) {
			n++
		}
	}
	return float64(n) / float64(len(v))
}

func emptyPanel() *models.Panel {
	return &models.Panel{Values: map[string][]float64{}}
}
