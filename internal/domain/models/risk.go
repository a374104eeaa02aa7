package models

import (
	"sort"
	"time"
)

// Region is the market an asset trades in.
type Region string

const (
	RegionJP    Region = "JP"
	RegionKR    Region = "KR"
	RegionHK    Region = "HK"
	RegionCN    Region = "CN"
	RegionOther Region = "OTHER"
)

// InterceptColumn is the name of the intercept term in every beta row.
const InterceptColumn = "Intercept"

// DesignMatrix is the per-asset factor table fed to the regression.
type DesignMatrix struct {
	Asset  string   `json:"asset"`
	Region Region   `json:"region"`
	Lagged []string `json:"lagged,omitempty"`
	*Panel
}

// BetaSeries holds one coefficient row per window-end date.
type BetaSeries struct {
	Asset   string      `json:"asset"`
	Factors []string    `json:"factors"` // design columns followed by Intercept
	Dates   []time.Time `json:"dates"`
	Rows    [][]float64 `json:"rows"`
}

// Len returns the number of beta rows.
func (b *BetaSeries) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Append adds a row. Rows must arrive in increasing date order.
func (b *BetaSeries) Append(d time.Time, row []float64) {
	b.Dates = append(b.Dates, d)
	b.Rows = append(b.Rows, row)
}

// Latest returns the most recent row keyed by factor, intercept included.
func (b *BetaSeries) Latest() map[string]float64 {
	if b.Len() == 0 {
		return nil
	}
	last := b.Rows[len(b.Rows)-1]
	out := make(map[string]float64, len(b.Factors))
	for i, f := range b.Factors {
		out[f] = last[i]
	}
	return out
}

// LatestDate returns the date of the most recent row.
func (b *BetaSeries) LatestDate() time.Time {
	if b.Len() == 0 {
		return time.Time{}
	}
	return b.Dates[len(b.Dates)-1]
}

// ScenarioVector maps factor to a shocked return.
type ScenarioVector map[string]float64

// SkipReason explains why an asset has no beta series.
type SkipReason string

const (
	SkipRegionOther         SkipReason = "region_other"
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipDegenerateFit       SkipReason = "degenerate_fit"
	SkipNoFactors           SkipReason = "no_factors"
	SkipCancelled           SkipReason = "cancelled"
)

// RunParams are the knobs a result was produced with.
type RunParams struct {
	Window   int     `json:"window"`
	Alpha    float64 `json:"alpha"`
	Coverage float64 `json:"coverage"`
	Workers  int     `json:"workers"`
}

// RunResult is the immutable outcome of one engine run.
type RunResult struct {
	ID           string                 `json:"id"`
	Version      int64                  `json:"version"`
	CreatedAt    time.Time              `json:"created_at"`
	Params       RunParams              `json:"params"`
	Betas        map[string]*BetaSeries `json:"betas"`
	Skipped      map[string]SkipReason  `json:"skipped"`
	SuccessCount int                    `json:"success_count"`
}

// Assets returns the fitted assets in sorted order.
func (r *RunResult) Assets() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Betas))
	for a := range r.Betas {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether no asset produced betas.
func (r *RunResult) Empty() bool { return r == nil || len(r.Betas) == 0 }

// RunSummary is the lightweight view of a run used by caches, events and the API.
type RunSummary struct {
	ID           string                `json:"id" msgpack:"id"`
	Version      int64                 `json:"version" msgpack:"version"`
	CreatedAt    time.Time             `json:"created_at" msgpack:"created_at"`
	Params       RunParams             `json:"params" msgpack:"params"`
	Assets       []string              `json:"assets" msgpack:"assets"`
	Skipped      map[string]SkipReason `json:"skipped,omitempty" msgpack:"skipped"`
	SuccessCount int                   `json:"success_count" msgpack:"success_count"`
	AsOf         time.Time             `json:"as_of" msgpack:"as_of"`
}

// Summary builds the RunSummary for r.
func (r *RunResult) Summary() RunSummary {
	s := RunSummary{
		ID:           r.ID,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		Params:       r.Params,
		Assets:       r.Assets(),
		Skipped:      r.Skipped,
		SuccessCount: r.SuccessCount,
	}
	for _, b := range r.Betas {
		if d := b.LatestDate(); d.After(s.AsOf) {
			s.AsOf = d
		}
	}
	return s
}
