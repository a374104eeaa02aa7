package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	"FactorLens/pkg/util"
)

// CSVPriceSource reads a wide close-price file: a date column followed by
// one column per symbol. Blank cells are missing prices.
type CSVPriceSource struct {
	path string
}

func NewCSVPriceSource(path string) *CSVPriceSource {
	return &CSVPriceSource{path: path}
}

func (s *CSVPriceSource) LoadPrices(ctx context.Context, symbols []string, from time.Time) (*models.Panel, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open prices: %w", err)
	}
	defer f.Close()
	return ReadPriceCSV(ctx, f, symbols, from)
}

func (s *CSVPriceSource) Close() error { return nil }

// ReadPriceCSV parses a wide price table from r, keeping the requested symbols
// and rows on or after from.
func ReadPriceCSV(ctx context.Context, r io.Reader, symbols []string, from time.Time) (*models.Panel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("price header needs a date column and at least one symbol")
	}
	index := make(map[string]int, len(header)-1)
	for i, h := range header[1:] {
		index[h] = i + 1
	}

	b := newPanelBuilder()
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d, ok := util.ParseDate(rec[0])
		if !ok {
			return nil, fmt.Errorf("line %d: bad date %q", line, rec[0])
		}
		if !from.IsZero() && d.Before(from) {
			continue
		}
		b.touch(d)
		for _, sym := range symbols {
			i, ok := index[sym]
			if !ok || i >= len(rec) {
				continue
			}
			v, err := util.ParseFloatOrNaN(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d, %s: %w", line, sym, err)
			}
			b.add(d, sym, v)
		}
	}
	return b.build(symbols)
}

var _ domrepo.PriceSource = (*CSVPriceSource)(nil)
