package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	applogger "FactorLens/pkg/logger"
)

// SQLResultStore is the database/sql implementation of ResultStore shared by
// the ClickHouse and SQLite backends. Only the DDL differs between them.
type SQLResultStore struct {
	db      *sql.DB
	backend string
	schema  []string
	owned   bool // close db on Close
	l       *applogger.Logger
}

// SetLogger injects a structured logger.
func (s *SQLResultStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *SQLResultStore) Init(ctx context.Context) error {
	for _, stmt := range s.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s init schema: %w", s.backend, err)
		}
	}
	return nil
}

func (s *SQLResultStore) SaveRun(ctx context.Context, r *models.RunResult) error {
	if r == nil {
		return nil
	}
	start := time.Now()
	sum := r.Summary()
	skipped, err := json.Marshal(sum.Skipped)
	if err != nil {
		return fmt.Errorf("marshal skipped: %w", err)
	}

	if err := s.insertRows(ctx, r); err != nil {
		s.logErr("save beta rows error", err)
		return err
	}

	const q = `INSERT INTO runs (run_id, version, created_at, window_size, alpha, coverage, workers, assets, skipped, as_of)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		sum.ID,
		sum.Version,
		sum.CreatedAt.UTC().Format(time.RFC3339Nano),
		sum.Params.Window,
		sum.Params.Alpha,
		sum.Params.Coverage,
		sum.Params.Workers,
		strings.Join(sum.Assets, ","),
		string(skipped),
		sum.AsOf.Format(time.DateOnly),
	); err != nil {
		s.logErr("save run error", err)
		return fmt.Errorf("insert run: %w", err)
	}
	if s.l != nil {
		s.l.Debug("run persisted",
			applogger.String("backend", s.backend),
			applogger.String("run_id", sum.ID),
			applogger.Duration("duration_ms", time.Since(start)))
	}
	return nil
}

// insertRows writes every beta row in one transaction with a prepared statement.
func (s *SQLResultStore) insertRows(ctx context.Context, r *models.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO beta_rows (run_id, asset, date, pos, factor, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, asset := range r.Assets() {
		series := r.Betas[asset]
		for i, row := range series.Rows {
			day := series.Dates[i].Format(time.DateOnly)
			for pos, f := range series.Factors {
				if _, err := stmt.ExecContext(ctx, r.ID, asset, day, pos, f, row[pos]); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("insert beta row %s/%s: %w", asset, day, err)
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLResultStore) LatestRun(ctx context.Context) (*models.RunSummary, error) {
	const q = `SELECT run_id, version, created_at, window_size, alpha, coverage, workers, assets, skipped, as_of
        FROM runs ORDER BY version DESC, created_at DESC LIMIT 1`
	var (
		sum       models.RunSummary
		createdAt string
		assets    string
		skipped   string
		asOf      string
	)
	err := s.db.QueryRowContext(ctx, q).Scan(
		&sum.ID, &sum.Version, &createdAt,
		&sum.Params.Window, &sum.Params.Alpha, &sum.Params.Coverage, &sum.Params.Workers,
		&assets, &skipped, &asOf,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sum.AsOf, err = time.Parse(time.DateOnly, asOf); err != nil {
		return nil, fmt.Errorf("parse as_of: %w", err)
	}
	if assets != "" {
		sum.Assets = strings.Split(assets, ",")
	}
	if err := json.Unmarshal([]byte(skipped), &sum.Skipped); err != nil {
		return nil, fmt.Errorf("unmarshal skipped: %w", err)
	}
	sum.SuccessCount = len(sum.Assets)
	return &sum, nil
}

func (s *SQLResultStore) LoadBetas(ctx context.Context, runID, asset string) (*models.BetaSeries, error) {
	const q = `SELECT date, pos, factor, value FROM beta_rows
        WHERE run_id = ? AND asset = ?
        ORDER BY date ASC, pos ASC`
	rows, err := s.db.QueryContext(ctx, q, runID, asset)
	if err != nil {
		return nil, fmt.Errorf("load betas: %w", err)
	}
	defer rows.Close()

	series := &models.BetaSeries{Asset: asset}
	var current []float64
	var currentDay string
	for rows.Next() {
		var (
			day    string
			pos    int
			factor string
			value  float64
		)
		if err := rows.Scan(&day, &pos, &factor, &value); err != nil {
			return nil, fmt.Errorf("scan beta row: %w", err)
		}
		if pos == 0 && current != nil {
			if err := appendRow(series, currentDay, current); err != nil {
				return nil, err
			}
			current = nil
		}
		// factor names come from the first date
		if series.Len() == 0 && len(series.Factors) == pos {
			series.Factors = append(series.Factors, factor)
		}
		current = append(current, value)
		currentDay = day
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if current != nil {
		if err := appendRow(series, currentDay, current); err != nil {
			return nil, err
		}
	}
	if series.Len() == 0 {
		return nil, domrepo.ErrNotFound
	}
	return series, nil
}

func appendRow(series *models.BetaSeries, day string, row []float64) error {
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", day, err)
	}
	if len(row) != len(series.Factors) {
		return fmt.Errorf("beta row %s has %d values, want %d", day, len(row), len(series.Factors))
	}
	series.Append(d, row)
	return nil
}

func (s *SQLResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLResultStore) Close() error {
	if s.owned && s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLResultStore) logErr(msg string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("backend", s.backend), applogger.Error(err))
	}
}

var _ domrepo.ResultStore = (*SQLResultStore)(nil)
