package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	xhttp "FactorLens/pkg/http"
	"FactorLens/pkg/util"
)

// HTTPPriceSource pulls closes from a JSON endpoint:
//
//	GET {url}?symbols=A,B&from=2012-01-01
//	{"prices":[{"date":"2024-01-02","symbol":"7203.T","close":2500.5}, ...]}
type HTTPPriceSource struct {
	url    string
	client *xhttp.Client
}

func NewHTTPPriceSource(url string, client *xhttp.Client) *HTTPPriceSource {
	if client == nil {
		client = xhttp.NewClient(xhttp.WithTimeout(30 * time.Second))
	}
	return &HTTPPriceSource{url: url, client: client}
}

type priceQuote struct {
	Date   string   `json:"date"`
	Symbol string   `json:"symbol"`
	Close  *float64 `json:"close"`
}

type priceResponse struct {
	Prices []priceQuote `json:"prices"`
}

func (s *HTTPPriceSource) LoadPrices(ctx context.Context, symbols []string, from time.Time) (*models.Panel, error) {
	query := map[string][]string{"symbols": {strings.Join(symbols, ",")}}
	if !from.IsZero() {
		query["from"] = []string{from.Format(time.DateOnly)}
	}

	var resp priceResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.url,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	b := newPanelBuilder()
	for _, q := range resp.Prices {
		d, ok := util.ParseDate(q.Date)
		if !ok {
			return nil, fmt.Errorf("bad date %q for %s", q.Date, q.Symbol)
		}
		if !from.IsZero() && d.Before(from) {
			continue
		}
		b.touch(d)
		if q.Close != nil {
			b.add(d, q.Symbol, *q.Close)
		}
	}
	return b.build(symbols)
}

func (s *HTTPPriceSource) Close() error { return nil }

var _ domrepo.PriceSource = (*HTTPPriceSource)(nil)
