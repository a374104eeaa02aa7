package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	pkgch "FactorLens/pkg/clickhouse"
	applogger "FactorLens/pkg/logger"
)

// CHPriceSource loads daily closes from a ClickHouse table with columns
// (date Date, symbol String, close Float64).
type CHPriceSource struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceSource(ch *pkgch.Client, table string) *CHPriceSource {
	if table == "" {
		table = "prices"
	}
	return &CHPriceSource{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPriceSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceSource) LoadPrices(ctx context.Context, symbols []string, from time.Time) (*models.Panel, error) {
	if len(symbols) == 0 {
		return models.NewPanel(nil, nil)
	}
	start := time.Now()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(symbols)), ",")
	q := fmt.Sprintf(`
        SELECT date, symbol, close
        FROM %s
        WHERE symbol IN (%s) AND date >= ?
        ORDER BY date ASC
    `, s.table, placeholders)

	args := make([]interface{}, 0, len(symbols)+1)
	for _, sym := range symbols {
		args = append(args, sym)
	}
	args = append(args, from)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr("clickhouse load_prices query error", err)
		return nil, fmt.Errorf("load prices: %w", err)
	}
	defer rows.Close()

	b := newPanelBuilder()
	for rows.Next() {
		var (
			d   time.Time
			sym string
			px  float64
		)
		if err := rows.Scan(&d, &sym, &px); err != nil {
			s.logErr("clickhouse load_prices scan error", err)
			return nil, fmt.Errorf("scan price: %w", err)
		}
		b.add(d, sym, px)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse load_prices rows error", err)
		return nil, fmt.Errorf("rows: %w", err)
	}

	p, err := b.build(symbols)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Debug("clickhouse prices loaded",
			applogger.Int("dates", p.Len()),
			applogger.Int("symbols", len(p.Columns)),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return p, nil
}

func (s *CHPriceSource) Close() error { return nil } // pool owned by pkg/clickhouse

func (s *CHPriceSource) logErr(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("table", s.table), applogger.Error(err))
	}
}

var _ domrepo.PriceSource = (*CHPriceSource)(nil)
