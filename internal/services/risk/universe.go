package risk

import (
	"sort"

	"FactorLens/internal/domain/models"
)

// Universe is the static set of tickers and factors the engine works with.
type Universe struct {
	Tickers     []string
	Factors     []string
	IndexPref   map[models.Region][]string
	FXPref      map[models.Region][]string
	Global      []string
	USTimed     map[string]bool
	LevelChange map[string]bool
}

var (
	jpTickers = []string{
		"7203.T", "6758.T", "9984.T", "7974.T", "8306.T", "9432.T", "9433.T", "8035.T",
		"4063.T", "6861.T", "6501.T", "8766.T", "8058.T", "8001.T", "6367.T", "6954.T",
		"9983.T", "4502.T",
	}
	krTickers = []string{
		"005930.KS", "000660.KS", "035420.KS", "035720.KS", "051910.KS", "006400.KS",
		"207940.KS", "068270.KS", "005380.KS", "000270.KS", "105560.KS", "055550.KS",
	}
	cnHKTickers = []string{
		"0700.HK", "9988.HK", "3690.HK", "9618.HK", "1810.HK", "1211.HK", "2318.HK",
		"0939.HK", "1398.HK", "0941.HK", "0883.HK", "0857.HK", "2628.HK",
		"600519.SS", "601318.SS", "300750.SZ",
	}
)

// DefaultUniverse returns the Asia watchlist with its regional and macro factors.
func DefaultUniverse() *Universe {
	global := []string{"^VIX", "^TNX", "CL=F", "HG=F"}
	usTimed := map[string]bool{"EWJ": true, "EWY": true, "EWH": true, "MCHI": true, "FXI": true}
	for _, g := range global {
		usTimed[g] = true
	}

	tickers := make([]string, 0, len(jpTickers)+len(krTickers)+len(cnHKTickers))
	tickers = append(tickers, jpTickers...)
	tickers = append(tickers, krTickers...)
	tickers = append(tickers, cnHKTickers...)

	return &Universe{
		Tickers: tickers,
		Factors: []string{
			"^N225", "^KS11", "^HSI", "000300.SS", // local indices
			"EWJ", "EWY", "EWH", "MCHI", "FXI", // US-listed ETFs
			"JPY=X", "KRW=X", "CNY=X", // currencies
			"^VIX", "^TNX", "CL=F", "HG=F", // global macro
		},
		IndexPref: map[models.Region][]string{
			models.RegionJP: {"^N225", "EWJ"},
			models.RegionKR: {"^KS11", "EWY"},
			models.RegionHK: {"^HSI", "EWH"},
			models.RegionCN: {"MCHI", "FXI"},
		},
		FXPref: map[models.Region][]string{
			models.RegionJP: {"JPY=X"},
			models.RegionKR: {"KRW=X"},
			models.RegionCN: {"CNY=X"},
		},
		Global:      global,
		USTimed:     usTimed,
		LevelChange: map[string]bool{"^TNX": true},
	}
}

// Watchlist returns the unique tickers in sorted order.
func (u *Universe) Watchlist() []string {
	seen := make(map[string]struct{}, len(u.Tickers))
	out := make([]string, 0, len(u.Tickers))
	for _, t := range u.Tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsUSTimed reports whether factor f prints during the US session.
func (u *Universe) IsUSTimed(f string) bool { return u.USTimed[f] }

// IsLevelChange reports whether factor f is expressed as a level change rather
// than a percentage change.
func (u *Universe) IsLevelChange(f string) bool { return u.LevelChange[f] }
