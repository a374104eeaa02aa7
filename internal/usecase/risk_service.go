package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"FactorLens/internal/domain/models"
	domrepo "FactorLens/internal/domain/repository"
	"FactorLens/internal/services/features"
	"FactorLens/internal/services/risk"
	"FactorLens/pkg/cache"
	applogger "FactorLens/pkg/logger"
)

// ErrRefreshInProgress is returned when another refresh holds the refresh lock.
var ErrRefreshInProgress = errors.New("usecase: refresh already in progress")

const (
	summaryCacheKey = "run:latest"
	refreshLockKey  = "lock:refresh"
	scenarioPrefix  = "scenario"
)

// RiskConfig holds the service-level knobs around the engine.
type RiskConfig struct {
	StartDate   time.Time
	ShockFactor string
	ShockSize   float64
	Tail        risk.Tail
	LockTTL     time.Duration
	CacheTTL    time.Duration
	SinkTimeout time.Duration
}

func (c RiskConfig) withDefaults() RiskConfig {
	if c.ShockFactor == "" {
		c.ShockFactor = "^VIX"
	}
	if c.ShockSize == 0 {
		c.ShockSize = 0.20
	}
	if c.Tail == "" {
		c.Tail = risk.TailUpper
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 30 * time.Second
	}
	return c
}

// snapshot is one immutable refresh outcome together with the panels it was fitted on.
type snapshot struct {
	result  *models.RunResult
	stocks  *models.Panel
	factors *models.Panel
}

// RiskOption attaches optional collaborators.
type RiskOption func(*RiskService)

func WithResultStore(s domrepo.ResultStore) RiskOption {
	return func(r *RiskService) { r.store = s }
}

func WithPublisher(p domrepo.Publisher) RiskOption {
	return func(r *RiskService) { r.publisher = p }
}

func WithArchiver(a domrepo.Archiver) RiskOption {
	return func(r *RiskService) { r.archiver = a }
}

func WithBroadcaster(b domrepo.Broadcaster) RiskOption {
	return func(r *RiskService) { r.broadcaster = b }
}

func WithCache(c cache.Service) RiskOption {
	return func(r *RiskService) { r.cache = c }
}

// RiskService runs refresh cycles and answers queries against the latest run.
type RiskService struct {
	engine  *risk.Engine
	source  domrepo.PriceSource
	metrics domrepo.Metrics
	l       *applogger.Logger
	cfg     RiskConfig

	store       domrepo.ResultStore
	publisher   domrepo.Publisher
	archiver    domrepo.Archiver
	broadcaster domrepo.Broadcaster
	cache       cache.Service

	refreshMu sync.Mutex
	latest    atomic.Pointer[snapshot]
	version   atomic.Int64
}

func NewRiskService(engine *risk.Engine, source domrepo.PriceSource, metrics domrepo.Metrics, l *applogger.Logger, cfg RiskConfig, opts ...RiskOption) *RiskService {
	if l == nil {
		l = applogger.Nop()
	}
	s := &RiskService{
		engine:  engine,
		source:  source,
		metrics: metrics,
		l:       l,
		cfg:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore seeds the version counter from the store so versions keep increasing
// across restarts.
func (s *RiskService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	sum, err := s.store.LatestRun(ctx)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore latest run: %w", err)
	}
	s.version.Store(sum.Version)
	s.l.Info("restored run version", applogger.String("run_id", sum.ID), applogger.Int64("version", sum.Version))
	return nil
}

// Refresh loads prices, refits every asset and fans the result out. A window
// <= 0 uses the engine default.
func (s *RiskService) Refresh(ctx context.Context, window int) (*models.RunResult, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	if s.cache != nil {
		ok, err := s.cache.TryLock(ctx, refreshLockKey, s.cfg.LockTTL)
		switch {
		case err != nil:
			s.l.Warn("refresh lock unavailable, continuing", applogger.Error(err))
			s.metrics.RecordError("cache_lock")
		case !ok:
			return nil, ErrRefreshInProgress
		default:
			defer func() {
				if err := s.cache.Unlock(context.WithoutCancel(ctx), refreshLockKey); err != nil {
					s.l.Warn("refresh unlock failed", applogger.Error(err))
				}
			}()
		}
	}

	start := time.Now()
	stocks, factors, err := s.loadPanels(ctx)
	if err != nil {
		s.metrics.RecordRun("failed")
		s.l.Error("refresh load failed", applogger.Error(err))
		return nil, err
	}

	res := s.engine.Run(ctx, stocks, factors, window)
	if err := ctx.Err(); err != nil {
		s.metrics.RecordRun("cancelled")
		return nil, fmt.Errorf("refresh cancelled: %w", err)
	}
	res.Version = s.version.Add(1)
	s.latest.Store(&snapshot{result: res, stocks: stocks, factors: factors})

	s.recordRun(res, time.Since(start))
	s.fanOut(ctx, res)
	return res, nil
}

func (s *RiskService) loadPanels(ctx context.Context) (*models.Panel, *models.Panel, error) {
	u := s.engine.Universe()
	symbols := append(u.Watchlist(), u.Factors...)

	start := time.Now()
	prices, err := s.source.LoadPrices(ctx, symbols, s.cfg.StartDate)
	s.metrics.RecordLatency("load_prices", time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError("source")
		return nil, nil, fmt.Errorf("%w: load prices: %v", risk.ErrNoUsableData, err)
	}

	stocks, factors, err := features.BuildReturnPanels(prices, features.ReturnSpec{
		Tickers:     u.Watchlist(),
		Factors:     u.Factors,
		LevelChange: u.LevelChange,
	})
	if err != nil {
		s.metrics.RecordError("returns")
		return nil, nil, fmt.Errorf("%w: build returns: %v", risk.ErrNoUsableData, err)
	}
	if stocks.Empty() || factors.Empty() {
		return nil, nil, fmt.Errorf("%w: empty return panels", risk.ErrNoUsableData)
	}
	return stocks, factors, nil
}

func (s *RiskService) recordRun(res *models.RunResult, took time.Duration) {
	status := "ok"
	if res.Empty() {
		status = "empty"
	}
	s.metrics.RecordRun(status)
	s.metrics.RecordLatency("refresh", took.Seconds())
	s.metrics.SetAssetsFitted(res.SuccessCount)
	s.metrics.SetLastRun(res.CreatedAt)
	for range res.Betas {
		s.metrics.RecordAsset("fitted")
	}
	for _, reason := range res.Skipped {
		s.metrics.RecordAsset(string(reason))
	}
}

// fanOut hands the result to every configured sink concurrently. Sink failures
// are logged and counted; they never fail the refresh.
func (s *RiskService) fanOut(parent context.Context, res *models.RunResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.SinkTimeout)
	defer cancel()

	summary := res.Summary()
	type outcome struct {
		sink string
		err  error
	}
	ch := make(chan outcome, 4)
	var wg sync.WaitGroup
	run := func(sink string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := fn()
			s.metrics.RecordLatency("sink_"+sink, time.Since(start).Seconds())
			ch <- outcome{sink, err}
		}()
	}

	if s.store != nil {
		run("store", func() error { return s.store.SaveRun(ctx, res) })
	}
	if s.publisher != nil {
		run("publish", func() error { return s.publisher.PublishRun(ctx, res) })
	}
	if s.archiver != nil {
		run("archive", func() error {
			key, err := s.archiver.Archive(ctx, res)
			if err == nil {
				s.l.Info("run archived", applogger.String("run_id", res.ID), applogger.String("key", key))
			}
			return err
		})
	}
	if s.cache != nil {
		run("cache", func() error { return s.cache.Set(ctx, summaryCacheKey, summary, s.cfg.CacheTTL) })
	}
	go func() { wg.Wait(); close(ch) }()

	for o := range ch {
		if o.err != nil {
			s.metrics.RecordError(o.sink)
			s.l.Error("run sink failed",
				applogger.String("sink", o.sink),
				applogger.String("run_id", res.ID),
				applogger.Error(o.err))
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(summary)
	}
}

func (s *RiskService) current() (*snapshot, error) {
	snap := s.latest.Load()
	if snap == nil {
		return nil, risk.ErrNoUsableData
	}
	return snap, nil
}

// Latest returns the most recent in-memory run.
func (s *RiskService) Latest() (*models.RunResult, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return snap.result, nil
}

// LatestSummary returns the latest run summary, falling back to the cache and
// then the store when this process has not refreshed yet.
func (s *RiskService) LatestSummary(ctx context.Context) (models.RunSummary, error) {
	if snap := s.latest.Load(); snap != nil {
		return snap.result.Summary(), nil
	}
	if s.cache != nil {
		var sum models.RunSummary
		if err := s.cache.Get(ctx, summaryCacheKey, &sum); err == nil {
			return sum, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("summary cache read failed", applogger.Error(err))
		}
	}
	if s.store != nil {
		sum, err := s.store.LatestRun(ctx)
		if err == nil {
			return *sum, nil
		}
		if !errors.Is(err, domrepo.ErrNotFound) {
			return models.RunSummary{}, fmt.Errorf("latest run: %w", err)
		}
	}
	return models.RunSummary{}, risk.ErrNoUsableData
}

// Betas returns the full beta history of asset.
func (s *RiskService) Betas(ctx context.Context, asset string) (*models.BetaSeries, error) {
	if snap := s.latest.Load(); snap != nil {
		series, ok := snap.result.Betas[asset]
		if !ok {
			return nil, fmt.Errorf("%w: %s", risk.ErrUnknownAsset, asset)
		}
		return series, nil
	}
	if s.store == nil {
		return nil, risk.ErrNoUsableData
	}
	sum, err := s.store.LatestRun(ctx)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil, risk.ErrNoUsableData
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	series, err := s.store.LoadBetas(ctx, sum.ID, asset)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", risk.ErrUnknownAsset, asset)
	}
	if err != nil {
		return nil, fmt.Errorf("load betas: %w", err)
	}
	return series, nil
}

// DesignMatrix rebuilds the design matrix asset is fitted with on the latest factors.
func (s *RiskService) DesignMatrix(asset string) (*models.DesignMatrix, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.engine.DesignMatrix(asset, snap.factors), nil
}

// Scenario builds a stress scenario on the latest factors and applies it to the
// latest betas with equal weights. An empty factor or tail and a nil size use
// the configured defaults; an explicit zero size is honoured.
func (s *RiskService) Scenario(ctx context.Context, factor string, size *float64, tail string) (*models.ScenarioReport, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	if factor == "" {
		factor = s.cfg.ShockFactor
	}
	shock := s.cfg.ShockSize
	if size != nil {
		shock = *size
	}
	t := s.cfg.Tail
	if tail != "" {
		if t, err = risk.ParseTail(tail); err != nil {
			return nil, err
		}
	}

	key := cache.GenerateKeyWithParams(scenarioPrefix, snap.result.ID, factor, shock, t)
	if s.cache != nil {
		var cached models.ScenarioReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	vec := s.engine.Scenario(snap.factors, factor, shock, t)
	report := &models.ScenarioReport{
		ShockFactor: factor,
		ShockSize:   shock,
		Tail:        string(t),
		Vector:      vec,
		Attribution: risk.PortfolioAttribution(snap.result.Betas, vec, nil),
		RunID:       snap.result.ID,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cfg.CacheTTL); err != nil {
			s.metrics.RecordError("cache")
		}
	}
	return report, nil
}

// Decomposition splits the recent return variance of asset. lookback <= 0 uses
// the window the latest run was fitted with.
func (s *RiskService) Decomposition(asset string, lookback int) (models.VarianceSplit, error) {
	snap, err := s.current()
	if err != nil {
		return models.VarianceSplit{}, err
	}
	series, ok := snap.result.Betas[asset]
	if !ok {
		return models.VarianceSplit{}, fmt.Errorf("%w: %s", risk.ErrUnknownAsset, asset)
	}
	actual, ok := snap.stocks.Column(asset)
	if !ok {
		return models.VarianceSplit{}, fmt.Errorf("%w: %s", risk.ErrUnknownAsset, asset)
	}
	if lookback <= 0 {
		lookback = snap.result.Params.Window
	}
	design := s.engine.DesignMatrix(asset, snap.factors)
	return risk.DecomposeVariance(asset, snap.stocks.Dates, actual, design, series.Latest(), lookback), nil
}

// Exposures returns the latest betas of every fitted asset, intercept excluded.
func (s *RiskService) Exposures() (map[string]map[string]float64, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}
	return risk.LatestExposures(snap.result.Betas), nil
}

// Correlation returns the factor correlation matrix of the latest factor panel
// and the pairs whose absolute correlation reaches threshold.
func (s *RiskService) Correlation(threshold float64) (models.CorrelationMatrix, []models.CorrelatedPair, error) {
	snap, err := s.current()
	if err != nil {
		return models.CorrelationMatrix{}, nil, err
	}
	if threshold <= 0 {
		threshold = risk.DefaultCollinearity
	}
	m := risk.FactorCorrelation(snap.factors)
	return m, risk.HighlyCollinear(m, threshold), nil
}

// Region classifies asset by its ticker suffix.
func (s *RiskService) Region(asset string) models.Region {
	return risk.InferRegion(asset)
}

// Health checks the result store when one is configured.
func (s *RiskService) Health(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.Health(ctx)
}
