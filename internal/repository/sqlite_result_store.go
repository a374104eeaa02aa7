package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS beta_rows (
        run_id TEXT NOT NULL,
        asset  TEXT NOT NULL,
        date   TEXT NOT NULL,
        pos    INTEGER NOT NULL,
        factor TEXT NOT NULL,
        value  REAL NOT NULL,
        PRIMARY KEY (run_id, asset, date, pos)
    )`,
	`CREATE TABLE IF NOT EXISTS runs (
        run_id      TEXT PRIMARY KEY,
        version     INTEGER NOT NULL,
        created_at  TEXT NOT NULL,
        window_size INTEGER NOT NULL,
        alpha       REAL NOT NULL,
        coverage    REAL NOT NULL,
        workers     INTEGER NOT NULL,
        assets      TEXT NOT NULL,
        skipped     TEXT NOT NULL,
        as_of       TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_runs_version ON runs (version)`,
}

// NewSQLiteResultStore opens (or creates) a SQLite database at path.
func NewSQLiteResultStore(path string) (*SQLResultStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := abs + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &SQLResultStore{db: db, backend: "sqlite", schema: sqliteSchema, owned: true}, nil
}
