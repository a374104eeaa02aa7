package risk

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLens/internal/domain/models"
)

func TestFitAsset_RowCountAndLabels(t *testing.T) {
	stocks, factors := asiaFixture(t, 301)
	f := NewFitter(NewSelector(DefaultUniverse(), 0), WithWorkers(1))

	series, reason, err := f.FitAsset("7203.T", stocks, factors, 252)
	require.NoError(t, err)
	require.Empty(t, reason)

	// row 0 drops out (missing stock return and lagged VIX), leaving 300 aligned rows
	assert.Equal(t, 48, series.Len())
	assert.Equal(t, []string{"^N225", "^VIX", models.InterceptColumn}, series.Factors)
	assert.Equal(t, factors.Dates[253], series.Dates[0])
	assert.Equal(t, factors.Dates[300], series.LatestDate())
	for _, row := range series.Rows {
		assert.Len(t, row, 3)
	}
	assert.IsIncreasing(t, series.Dates)
}

func TestFitAsset_RecoversBetas(t *testing.T) {
	stocks, factors := asiaFixture(t, 301)
	f := NewFitter(NewSelector(DefaultUniverse(), 0), WithAlpha(1e-9))

	series, _, err := f.FitAsset("7203.T", stocks, factors, 252)
	require.NoError(t, err)

	latest := series.Latest()
	assert.InDelta(t, 0.8, latest["^N225"], 0.01)
	assert.InDelta(t, -0.3, latest["^VIX"], 0.01)
	assert.InDelta(t, 0.05, latest[models.InterceptColumn], 0.01)
}

func TestFitAsset_HistoryBoundaries(t *testing.T) {
	stocks, factors := asiaFixture(t, 301)
	f := NewFitter(NewSelector(DefaultUniverse(), 0))

	_, reason, err := f.FitAsset("7203.T", stocks, factors, 300)
	require.NoError(t, err)
	assert.Equal(t, models.SkipInsufficientHistory, reason)

	series, reason, err := f.FitAsset("7203.T", stocks, factors, 299)
	require.NoError(t, err)
	assert.Empty(t, reason)
	require.Equal(t, 1, series.Len())
	assert.Equal(t, factors.Dates[300], series.Dates[0])

	_, reason, _ = f.FitAsset("7203.T", stocks, factors, 400)
	assert.Equal(t, models.SkipInsufficientHistory, reason)
}

func multiAssetFixture(t *testing.T) (stocks, factors *models.Panel) {
	t.Helper()
	stocks, factors = asiaFixture(t, 320)
	r := rand.New(rand.NewSource(11))
	for _, a := range []string{"6758.T", "005930.KS", "0700.HK", "600519.SS", "AAPL"} {
		require.NoError(t, stocks.Set(a, noise(r, stocks.Len(), 0.02)))
	}
	return stocks, factors
}

func TestFitAll_ParallelMatchesSequential(t *testing.T) {
	stocks, factors := multiAssetFixture(t)
	sel := NewSelector(DefaultUniverse(), 0)

	seqBetas, seqSkipped := NewFitter(sel, WithWorkers(1)).FitAll(context.Background(), stocks, factors, 60)
	parBetas, parSkipped := NewFitter(sel, WithWorkers(4)).FitAll(context.Background(), stocks, factors, 60)

	assert.Equal(t, seqBetas, parBetas)
	assert.Equal(t, seqSkipped, parSkipped)
	assert.Len(t, seqBetas, 5)
	assert.Equal(t, map[string]models.SkipReason{"AAPL": models.SkipRegionOther}, seqSkipped)
}

func TestFitAll_DegenerateAssetIsDropped(t *testing.T) {
	stocks, factors := multiAssetFixture(t)
	flat := make([]float64, factors.Len())
	for i := range flat {
		flat[i] = 1
	}
	require.NoError(t, factors.Set("^N225", flat))

	f := NewFitter(NewSelector(DefaultUniverse(), 0), WithAlpha(0), WithWorkers(2))
	betas, skipped := f.FitAll(context.Background(), stocks, factors, 60)

	assert.Equal(t, models.SkipDegenerateFit, skipped["7203.T"])
	assert.Equal(t, models.SkipDegenerateFit, skipped["6758.T"])
	assert.NotContains(t, betas, "7203.T")
	assert.Contains(t, betas, "005930.KS")
	assert.Contains(t, betas, "0700.HK")
}

func TestFitAll_CancelledContext(t *testing.T) {
	stocks, factors := multiAssetFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		betas, skipped := NewFitter(NewSelector(nil, 0), WithWorkers(workers)).FitAll(ctx, stocks, factors, 60)
		assert.Empty(t, betas)
		assert.Len(t, skipped, len(stocks.Columns))
		for _, reason := range skipped {
			assert.Equal(t, models.SkipCancelled, reason)
		}
	}
}

func TestFitAll_EmptyInputs(t *testing.T) {
	_, factors := asiaFixture(t, 10)
	betas, skipped := NewFitter(NewSelector(nil, 0)).FitAll(context.Background(), nil, factors, 5)
	assert.Empty(t, betas)
	assert.Empty(t, skipped)
}
