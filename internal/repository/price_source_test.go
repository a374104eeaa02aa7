package repository

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const priceCSV = `date,7203.T,^N225,^VIX
2024-01-02,2500,33000,13.1
2024-01-04,2510,,13.5
2024-01-03,,33100,14.0
2024-01-05,2490,32900,
`

func TestReadPriceCSV(t *testing.T) {
	p, err := ReadPriceCSV(context.Background(), strings.NewReader(priceCSV), []string{"^VIX", "7203.T", "MISSING"}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, []string{"^VIX", "7203.T"}, p.Columns)
	require.Equal(t, 4, p.Len())
	assert.True(t, p.Dates[1].Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)), "rows are sorted by date")

	stock, _ := p.Column("7203.T")
	assert.Equal(t, 2500.0, stock[0])
	assert.True(t, math.IsNaN(stock[1]))
	vix, _ := p.Column("^VIX")
	assert.Equal(t, 14.0, vix[1])
	assert.True(t, math.IsNaN(vix[3]))
}

func TestReadPriceCSV_FromFilter(t *testing.T) {
	from := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	p, err := ReadPriceCSV(context.Background(), strings.NewReader(priceCSV), []string{"7203.T"}, from)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
}

func TestReadPriceCSV_BadInput(t *testing.T) {
	_, err := ReadPriceCSV(context.Background(), strings.NewReader("date,A\nnot-a-date,1\n"), []string{"A"}, time.Time{})
	assert.Error(t, err)

	_, err = ReadPriceCSV(context.Background(), strings.NewReader("date,A\n2024-01-02,x\n"), []string{"A"}, time.Time{})
	assert.Error(t, err)
}

func TestCSVPriceSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(priceCSV), 0o644))

	src := NewCSVPriceSource(path)
	p, err := src.LoadPrices(context.Background(), []string{"^N225"}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"^N225"}, p.Columns)
	assert.NoError(t, src.Close())

	_, err = NewCSVPriceSource(filepath.Join(t.TempDir(), "nope.csv")).LoadPrices(context.Background(), nil, time.Time{})
	assert.Error(t, err)
}

func TestHTTPPriceSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7203.T,^VIX", r.URL.Query().Get("symbols"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":[
			{"date":"2024-01-03","symbol":"7203.T","close":2510},
			{"date":"2024-01-02","symbol":"7203.T","close":2500},
			{"date":"2024-01-02","symbol":"^VIX","close":13.1},
			{"date":"2024-01-03","symbol":"^VIX","close":null}
		]}`))
	}))
	defer srv.Close()

	src := NewHTTPPriceSource(srv.URL, nil)
	p, err := src.LoadPrices(context.Background(), []string{"7203.T", "^VIX"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, 2, p.Len())
	stock, _ := p.Column("7203.T")
	assert.Equal(t, []float64{2500, 2510}, stock)
	vix, _ := p.Column("^VIX")
	assert.True(t, math.IsNaN(vix[1]))
}

func TestHTTPPriceSource_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPPriceSource(srv.URL, nil).LoadPrices(context.Background(), []string{"A"}, time.Time{})
	assert.Error(t, err)
}
