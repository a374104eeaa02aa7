package risk

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"FactorLens/internal/domain/models"
	applogger "FactorLens/pkg/logger"
)

// DefaultWindow is the number of trading days in one training window.
const DefaultWindow = 252

// Fitter runs rolling ridge regressions for every asset in a return panel.
type Fitter struct {
	selector *Selector
	alpha    float64
	workers  int
	logger   *applogger.Logger
}

// FitterOption configures a Fitter.
type FitterOption func(*Fitter)

// WithAlpha sets the ridge penalty.
func WithAlpha(alpha float64) FitterOption {
	return func(f *Fitter) {
		if alpha >= 0 {
			f.alpha = alpha
		}
	}
}

// WithWorkers bounds the number of assets fitted concurrently. Values <= 1
// fit assets one after another.
func WithWorkers(n int) FitterOption {
	return func(f *Fitter) { f.workers = n }
}

// WithFitterLogger sets the logger used for skipped and dropped assets.
func WithFitterLogger(l *applogger.Logger) FitterOption {
	return func(f *Fitter) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFitter creates a Fitter around selector.
func NewFitter(selector *Selector, opts ...FitterOption) *Fitter {
	f := &Fitter{
		selector: selector,
		alpha:    DefaultAlpha,
		workers:  runtime.NumCPU(),
		logger:   applogger.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Alpha returns the ridge penalty in use.
func (f *Fitter) Alpha() float64 { return f.alpha }

// Workers returns the configured concurrency.
func (f *Fitter) Workers() int { return f.workers }

// FitAll fits every asset column of stocks against factors. Assets that
// produce no rows are reported in the skipped map and never appear in betas.
func (f *Fitter) FitAll(ctx context.Context, stocks, factors *models.Panel, window int) (map[string]*models.BetaSeries, map[string]models.SkipReason) {
	betas := make(map[string]*models.BetaSeries)
	skipped := make(map[string]models.SkipReason)
	if stocks.Empty() || factors.Empty() {
		return betas, skipped
	}

	var mu sync.Mutex
	join := func(asset string, series *models.BetaSeries, reason models.SkipReason) {
		mu.Lock()
		defer mu.Unlock()
		if reason != "" {
			skipped[asset] = reason
			return
		}
		betas[asset] = series
	}

	run := func(asset string) {
		start := time.Now()
		series, reason, err := f.FitAsset(asset, stocks, factors, window)
		if err != nil {
			f.logger.Warn("dropping asset",
				applogger.String("asset", asset),
				applogger.String("reason", string(reason)),
				applogger.Error(err))
		} else if reason != "" {
			f.logger.Debug("skipping asset",
				applogger.String("asset", asset),
				applogger.String("reason", string(reason)))
		} else {
			f.logger.Debug("asset fitted",
				applogger.String("asset", asset),
				applogger.Int("rows", series.Len()),
				applogger.Duration("duration_ms", time.Since(start)))
		}
		join(asset, series, reason)
	}

	assets := stocks.Columns
	if f.workers <= 1 {
		for i, asset := range assets {
			if ctx.Err() != nil {
				markCancelled(assets[i:], join)
				break
			}
			run(asset)
		}
		return betas, skipped
	}

	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, asset := range assets {
		if ctx.Err() != nil {
			markCancelled(assets[i:], join)
			break
		}
		g.Go(func() error {
			run(asset)
			return nil
		})
	}
	_ = g.Wait()
	return betas, skipped
}

func markCancelled(assets []string, join func(string, *models.BetaSeries, models.SkipReason)) {
	for _, a := range assets {
		join(a, nil, models.SkipCancelled)
	}
}

// FitAsset produces the rolling beta series of one asset. A non-empty skip
// reason means no series was produced; err is set only for degenerate fits.
func (f *Fitter) FitAsset(asset string, stocks, factors *models.Panel, window int) (*models.BetaSeries, models.SkipReason, error) {
	region := InferRegion(asset)
	if region == models.RegionOther {
		return nil, models.SkipRegionOther, nil
	}
	y, ok := stocks.Column(asset)
	if !ok {
		return nil, models.SkipInsufficientHistory, nil
	}

	dm := f.selector.BuildDesignMatrix(asset, region, factors)
	if len(dm.Columns) == 0 {
		return nil, models.SkipNoFactors, nil
	}

	dates, ys, x := align(stocks.Dates, y, dm)
	n := len(ys)
	if window < 1 || n <= window {
		return nil, models.SkipInsufficientHistory, nil
	}

	p := len(dm.Columns)
	series := &models.BetaSeries{
		Asset:   asset,
		Factors: append(append(make([]string, 0, p+1), dm.Columns...), models.InterceptColumn),
		Dates:   make([]time.Time, 0, n-window),
		Rows:    make([][]float64, 0, n-window),
	}
	for i := window; i < n; i++ {
		xw := x.Slice(i-window, i, 0, p).(*mat.Dense)
		fit, err := FitRidge(xw, ys[i-window:i], f.alpha)
		if err != nil {
			return nil, models.SkipDegenerateFit, fmt.Errorf("window ending %s: %w", dates[i].Format(time.DateOnly), err)
		}
		series.Append(dates[i], fit.Row())
	}
	return series, "", nil
}

// align inner-joins y (indexed by yDates) with the design matrix, keeping only
// dates where the target and every design column are present.
func align(yDates []time.Time, y []float64, dm *models.DesignMatrix) ([]time.Time, []float64, *mat.Dense) {
	cols := make([][]float64, len(dm.Columns))
	for j, c := range dm.Columns {
		cols[j], _ = dm.Column(c)
	}

	var (
		dates []time.Time
		ys    []float64
		data  []float64
	)
	i, k := 0, 0
	for i < len(yDates) && k < len(dm.Dates) {
		switch {
		case yDates[i].Before(dm.Dates[k]):
			i++
			continue
		case dm.Dates[k].Before(yDates[i]):
			k++
			continue
		}
		if complete(y[i], cols, k) {
			dates = append(dates, yDates[i])
			ys = append(ys, y[i])
			for _, col := range cols {
				data = append(data, col[k])
			}
		}
		i++
		k++
	}
	if len(ys) == 0 {
		return nil, nil, nil
	}
	return dates, ys, mat.NewDense(len(ys), len(cols), data)
}

func complete(y float64, cols [][]float64, k int) bool {
	if math.IsNaN(y) {
		return false
	}
	for _, col := range cols {
		if math.IsNaN(col[k]) {
			return false
		}
	}
	return true
}
