package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
)

func sampleRun(id string, version int64) *models.RunResult {
	d0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	factors := []string{"^N225", "^VIX", models.InterceptColumn}
	a := &models.BetaSeries{Asset: "7203.T", Factors: factors}
	a.Append(d0, []float64{0.8, -0.1, 0.001})
	a.Append(d0.AddDate(0, 0, 1), []float64{0.79, -0.12, 0.002})
	b := &models.BetaSeries{Asset: "0700.HK", Factors: []string{"^HSI", models.InterceptColumn}}
	b.Append(d0.AddDate(0, 0, 1), []float64{1.1, 0})

	return &models.RunResult{
		ID:           id,
		Version:      version,
		CreatedAt:    time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC),
		Params:       models.RunParams{Window: 252, Alpha: 1, Coverage: 0.85, Workers: 4},
		Betas:        map[string]*models.BetaSeries{"7203.T": a, "0700.HK": b},
		Skipped:      map[string]models.SkipReason{"AAPL": models.SkipRegionOther},
		SuccessCount: 2,
	}
}

func openSQLite(t *testing.T) *SQLResultStore {
	t.Helper()
	s, err := NewSQLiteResultStore(filepath.Join(t.TempDir(), "runs", "factorlens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestSQLiteResultStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	require.NoError(t, s.Health(ctx))

	run := sampleRun("run-1", 1)
	require.NoError(t, s.SaveRun(ctx, run))

	sum, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-1", sum.ID)
	assert.Equal(t, int64(1), sum.Version)
	assert.Equal(t, []string{"0700.HK", "7203.T"}, sum.Assets)
	assert.Equal(t, run.Params, sum.Params)
	assert.Equal(t, models.SkipRegionOther, sum.Skipped["AAPL"])
	assert.True(t, run.CreatedAt.Equal(sum.CreatedAt))
	assert.Equal(t, "2024-05-02", sum.AsOf.Format(time.DateOnly))

	got, err := s.LoadBetas(ctx, "run-1", "7203.T")
	require.NoError(t, err)
	want := run.Betas["7203.T"]
	assert.Equal(t, want.Factors, got.Factors)
	assert.Equal(t, want.Rows, got.Rows)
	require.Len(t, got.Dates, 2)
	assert.True(t, want.Dates[1].Equal(got.Dates[1]))
}

func TestSQLiteResultStore_LatestVersionWins(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	require.NoError(t, s.SaveRun(ctx, sampleRun("run-1", 1)))
	require.NoError(t, s.SaveRun(ctx, sampleRun("run-2", 2)))

	sum, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", sum.ID)
}

func TestSQLiteResultStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, domrepo.ErrNotFound)

	_, err = s.LoadBetas(ctx, "missing", "7203.T")
	assert.ErrorIs(t, err, domrepo.ErrNotFound)
}
