package repository

import (
	"sort"
	"time"

	"FactorLens/internal/domain/models"
	"FactorLens/pkg/util"
)

// panelBuilder collects long-format (date, symbol, value) observations.
type panelBuilder struct {
	values map[string]map[time.Time]float64
	dates  map[time.Time]struct{}
}

func newPanelBuilder() *panelBuilder {
	return &panelBuilder{
		values: make(map[string]map[time.Time]float64),
		dates:  make(map[time.Time]struct{}),
	}
}

func (b *panelBuilder) add(d time.Time, symbol string, v float64) {
	d = util.Day(d)
	col, ok := b.values[symbol]
	if !ok {
		col = make(map[time.Time]float64)
		b.values[symbol] = col
	}
	col[d] = v
	b.dates[d] = struct{}{}
}

// touch registers a date even when none of its values are wanted.
func (b *panelBuilder) touch(d time.Time) {
	b.dates[util.Day(d)] = struct{}{}
}

// build lays the observations out in symbol order. Symbols with no rows are
// left out.
func (b *panelBuilder) build(symbols []string) (*models.Panel, error) {
	dates := make([]time.Time, 0, len(b.dates))
	for d := range b.dates {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cols := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := b.values[s]; ok {
			cols = append(cols, s)
		}
	}
	p, err := models.NewPanel(dates, cols)
	if err != nil {
		return nil, err
	}
	for i, d := range dates {
		for _, c := range p.Columns {
			if v, ok := b.values[c][d]; ok {
				p.Values[c][i] = v
			}
		}
	}
	return p, nil
}
