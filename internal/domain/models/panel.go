package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnsortedIndex is returned when a panel index is not strictly increasing.
var ErrUnsortedIndex = errors.New("panel: dates must be strictly increasing")

// Panel is a date-indexed table of float columns. Missing values are NaN.
type Panel struct {
	Dates   []time.Time          `json:"dates"`
	Columns []string             `json:"columns"`
	Values  map[string][]float64 `json:"values"`
}

// NewPanel creates an empty panel over dates. Every column starts fully missing.
func NewPanel(dates []time.Time, columns []string) (*Panel, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("%w: %s after %s", ErrUnsortedIndex,
				dates[i].Format(time.DateOnly), dates[i-1].Format(time.DateOnly))
		}
	}
	p := &Panel{
		Dates:   append([]time.Time(nil), dates...),
		Columns: make([]string, 0, len(columns)),
		Values:  make(map[string][]float64, len(columns)),
	}
	for _, c := range columns {
		if _, dup := p.Values[c]; dup {
			continue
		}
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		p.Columns = append(p.Columns, c)
		p.Values[c] = col
	}
	return p, nil
}

// Len returns the number of rows.
func (p *Panel) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Dates)
}

// Empty reports whether the panel has no rows or no columns.
func (p *Panel) Empty() bool {
	return p == nil || len(p.Dates) == 0 || len(p.Columns) == 0
}

// Has reports whether col is a column of the panel.
func (p *Panel) Has(col string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Values[col]
	return ok
}

// Column returns the backing slice for col. Callers must not mutate it.
func (p *Panel) Column(col string) ([]float64, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.Values[col]
	return v, ok
}

// Set replaces (or appends) a column. vals must match the index length.
func (p *Panel) Set(col string, vals []float64) error {
	if len(vals) != len(p.Dates) {
		return fmt.Errorf("panel: column %s has %d values, index has %d", col, len(vals), len(p.Dates))
	}
	if _, ok := p.Values[col]; !ok {
		p.Columns = append(p.Columns, col)
	}
	p.Values[col] = vals
	return nil
}

// Drop removes columns in place.
func (p *Panel) Drop(cols ...string) {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
		delete(p.Values, c)
	}
	kept := p.Columns[:0]
	for _, c := range p.Columns {
		if _, ok := drop[c]; !ok {
			kept = append(kept, c)
		}
	}
	p.Columns = kept
}

// Select returns a copy restricted to cols, in the given order, sharing the date index.
// Columns missing from the panel are skipped.
func (p *Panel) Select(cols []string) *Panel {
	out := &Panel{Values: make(map[string][]float64, len(cols))}
	if p == nil {
		return out
	}
	out.Dates = p.Dates
	for _, c := range cols {
		v, ok := p.Values[c]
		if !ok {
			continue
		}
		if _, dup := out.Values[c]; dup {
			continue
		}
		out.Columns = append(out.Columns, c)
		out.Values[c] = append([]float64(nil), v...)
	}
	return out
}

// Coverage returns the fraction of non-missing values in col.
func (p *Panel) Coverage(col string) float64 {
	v, ok := p.Column(col)
	if !ok || len(v) == 0 {
		return 0
	}
	n := 0
	for _, x := range v {
		if !math.IsNaN(x) {
			n++
		}
	}
	return float64(n) / float64(len(v))
}

// IndexOf returns the row for date d, or -1.
func (p *Panel) IndexOf(d time.Time) int {
	if p == nil {
		return -1
	}
	lo, hi := 0, len(p.Dates)
	for lo < hi {
		mid := (lo + hi) / 2
		if p.Dates[mid].Before(d) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(p.Dates) && p.Dates[lo].Equal(d) {
		return lo
	}
	return -1
}
