package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"FactorLens/internal/domain/models"
)

func TestInferRegion(t *testing.T) {
	tests := []struct {
		id   string
		want models.Region
	}{
		{"7203.T", models.RegionJP},
		{"005930.KS", models.RegionKR},
		{"0700.HK", models.RegionHK},
		{"600519.SS", models.RegionCN},
		{"300750.SZ", models.RegionCN},
		{"AAPL", models.RegionOther},
		{"SAP.DE", models.RegionOther},
		{"", models.RegionOther},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRegion(tt.id))
		})
	}
}

func TestIsAsian(t *testing.T) {
	assert.True(t, IsAsian(models.RegionJP))
	assert.True(t, IsAsian(models.RegionCN))
	assert.False(t, IsAsian(models.RegionOther))
}

func TestDefaultUniverse(t *testing.T) {
	u := DefaultUniverse()
	assert.Len(t, u.Tickers, 46)
	assert.Len(t, u.Factors, 16)
	assert.Equal(t, []string{"^VIX", "^TNX", "CL=F", "HG=F"}, u.Global)
	assert.True(t, u.IsUSTimed("EWJ"))
	assert.True(t, u.IsUSTimed("^VIX"))
	assert.False(t, u.IsUSTimed("^N225"))
	assert.True(t, u.IsLevelChange("^TNX"))
	assert.False(t, u.IsLevelChange("^VIX"))
	assert.Empty(t, u.FXPref[models.RegionHK])

	w := u.Watchlist()
	assert.Len(t, w, 46)
	assert.IsIncreasing(t, w)
}
