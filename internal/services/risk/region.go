package risk

import (
	"strings"

	"FactorLens/internal/domain/models"
)

// suffixRegions is checked in order; ".SS"/".SZ" share a prefix with other
// exchange codes so exact suffix matches are required.
var suffixRegions = []struct {
	suffix string
	region models.Region
}{
	{".T", models.RegionJP},
	{".KS", models.RegionKR},
	{".HK", models.RegionHK},
	{".SS", models.RegionCN},
	{".SZ", models.RegionCN},
}

// InferRegion maps an asset identifier to its market by exchange suffix.
// Unknown suffixes map to OTHER.
func InferRegion(identifier string) models.Region {
	for _, sr := range suffixRegions {
		if strings.HasSuffix(identifier, sr.suffix) {
			return sr.region
		}
	}
	return models.RegionOther
}

// IsAsian reports whether US-session factors must be lagged for region r.
func IsAsian(r models.Region) bool {
	switch r {
	case models.RegionJP, models.RegionKR, models.RegionHK, models.RegionCN:
		return true
	default:
		return false
	}
}
