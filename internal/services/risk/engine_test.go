package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLens/internal/domain/models"
)

func TestEngine_Run(t *testing.T) {
	stocks, factors := multiAssetFixture(t)
	e := NewEngine(EngineConfig{Window: 252, Workers: 3}, nil, nil)

	res := e.Run(context.Background(), stocks, factors, 0)

	require.NotNil(t, res)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 252, res.Params.Window)
	assert.Equal(t, DefaultAlpha, res.Params.Alpha)
	assert.Equal(t, DefaultCoverage, res.Params.Coverage)
	assert.Equal(t, 5, res.SuccessCount)
	assert.Equal(t, models.SkipRegionOther, res.Skipped["AAPL"])
	assert.Equal(t, []string{"005930.KS", "0700.HK", "600519.SS", "6758.T", "7203.T"}, res.Assets())
	assert.Equal(t, 320-1-252, res.Betas["7203.T"].Len())

	sum := res.Summary()
	assert.Equal(t, factors.Dates[319], sum.AsOf)
}

func TestEngine_RunIsNotMemoised(t *testing.T) {
	stocks, factors := asiaFixture(t, 301)
	e := NewEngine(EngineConfig{Workers: 1}, nil, nil)

	first := e.Run(context.Background(), stocks, factors, 252)
	second := e.Run(context.Background(), stocks, factors, 100)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 48, first.Betas["7203.T"].Len())
	assert.Equal(t, 200, second.Betas["7203.T"].Len())
}

func TestEngine_EmptyPanels(t *testing.T) {
	res := NewEngine(EngineConfig{}, nil, nil).Run(context.Background(), nil, nil, 0)
	assert.True(t, res.Empty())
	assert.Empty(t, res.Skipped)
}

func TestEngine_DesignMatrixMatchesFit(t *testing.T) {
	stocks, factors := asiaFixture(t, 301)
	e := NewEngine(EngineConfig{}, DefaultUniverse(), nil)

	dm := e.DesignMatrix("7203.T", factors)
	res := e.Run(context.Background(), stocks, factors, 252)

	assert.Equal(t, models.RegionJP, dm.Region)
	assert.Equal(t, append(append([]string{}, dm.Columns...), models.InterceptColumn), res.Betas["7203.T"].Factors)
	assert.Equal(t, []string{"^VIX"}, dm.Lagged)
}

func TestEngine_Scenario(t *testing.T) {
	_, cols := scenarioPanel(t)
	factors := newPanel(t, tradingDays(100), cols, "^VIX", "EWJ")
	v := NewEngine(EngineConfig{}, nil, nil).Scenario(factors, "^VIX", 0.2, TailUpper)
	assert.InDelta(t, 0.2, v["^VIX"], 1e-12)
}
