package repository

import (
	"context"
	"errors"
	"time"

	"FactorLens/internal/domain/models"
)

// PriceSource loads a date-indexed panel of close prices.
type PriceSource interface {
	LoadPrices(ctx context.Context, symbols []string, from time.Time) (*models.Panel, error)
	Close() error
}

// ResultStore persists beta runs.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	SaveRun(ctx context.Context, r *models.RunResult) error
	LatestRun(ctx context.Context) (*models.RunSummary, error)
	LoadBetas(ctx context.Context, runID, asset string) (*models.BetaSeries, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// Publisher fans a finished run out to downstream consumers.
type Publisher interface {
	PublishRun(ctx context.Context, r *models.RunResult) error
	Close() error
}

// Archiver keeps a durable copy of each run.
type Archiver interface {
	Archive(ctx context.Context, r *models.RunResult) (string, error)
}

// Broadcaster pushes run summaries to live subscribers.
type Broadcaster interface {
	Broadcast(s models.RunSummary)
}

type Metrics interface {
	RecordRun(status string)
	RecordAsset(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetAssetsFitted(n int)
	SetLastRun(t time.Time)
}

// ErrNotFound is returned by stores when the requested run or series does not exist.
var ErrNotFound = errors.New("repository: not found")
