package repository

import (
	pkgch "FactorLens/pkg/clickhouse"
)

// ClickHouse keeps dates as ISO strings so the same queries serve both SQL backends.
var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS beta_rows (
        run_id String,
        asset  LowCardinality(String),
        date   String,
        pos    Int32,
        factor LowCardinality(String),
        value  Float64
    ) ENGINE = MergeTree ORDER BY (run_id, asset, date, pos)`,
	`CREATE TABLE IF NOT EXISTS runs (
        run_id      String,
        version     Int64,
        created_at  String,
        window_size Int64,
        alpha       Float64,
        coverage    Float64,
        workers     Int64,
        assets      String,
        skipped     String,
        as_of       String
    ) ENGINE = ReplacingMergeTree ORDER BY (run_id)`,
}

// NewClickHouseResultStore creates a result store on the shared ClickHouse pool.
func NewClickHouseResultStore(ch *pkgch.Client) *SQLResultStore {
	return &SQLResultStore{db: ch.DB(), backend: "clickhouse", schema: clickhouseSchema}
}
