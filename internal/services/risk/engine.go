package risk

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/google/uuid"

	"FactorLens/internal/domain/models"
	applogger "FactorLens/pkg/logger"
)

var (
	// ErrNoUsableData is returned when the inputs cannot produce any betas.
	ErrNoUsableData = errors.New("risk: no usable data")
	// ErrUnknownAsset is returned for assets without a beta series.
	ErrUnknownAsset = errors.New("risk: unknown asset")
)

// EngineConfig holds the numeric parameters of a run.
type EngineConfig struct {
	Window   int
	Alpha    float64
	Coverage float64
	Workers  int
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Alpha <= 0 {
		c.Alpha = DefaultAlpha
	}
	if c.Coverage <= 0 || c.Coverage > 1 {
		c.Coverage = DefaultCoverage
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Engine estimates factor betas for a universe of assets. It keeps no state
// between runs.
type Engine struct {
	cfg      EngineConfig
	universe *Universe
	selector *Selector
	fitter   *Fitter
	logger   *applogger.Logger
}

// NewEngine wires a selector and fitter from cfg.
func NewEngine(cfg EngineConfig, universe *Universe, logger *applogger.Logger) *Engine {
	cfg = cfg.withDefaults()
	if universe == nil {
		universe = DefaultUniverse()
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	selector := NewSelector(universe, cfg.Coverage)
	return &Engine{
		cfg:      cfg,
		universe: universe,
		selector: selector,
		fitter: NewFitter(selector,
			WithAlpha(cfg.Alpha),
			WithWorkers(cfg.Workers),
			WithFitterLogger(logger)),
		logger: logger,
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Universe returns the universe the engine was built with.
func (e *Engine) Universe() *Universe { return e.universe }

// Run fits every asset in stocks. A window <= 0 uses the configured window.
// Empty panels yield an empty result, never an error.
func (e *Engine) Run(ctx context.Context, stocks, factors *models.Panel, window int) *models.RunResult {
	if window <= 0 {
		window = e.cfg.Window
	}
	start := time.Now()
	betas, skipped := e.fitter.FitAll(ctx, stocks, factors, window)

	res := &models.RunResult{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Params: models.RunParams{
			Window:   window,
			Alpha:    e.fitter.Alpha(),
			Coverage: e.selector.Coverage(),
			Workers:  e.fitter.Workers(),
		},
		Betas:        betas,
		Skipped:      skipped,
		SuccessCount: len(betas),
	}
	e.logger.Info("engine run finished",
		applogger.String("run_id", res.ID),
		applogger.Int("window", window),
		applogger.Float("alpha", res.Params.Alpha),
		applogger.Int("fitted", len(betas)),
		applogger.Int("skipped", len(skipped)),
		applogger.Duration("duration_ms", time.Since(start)))
	return res
}

// DesignMatrix builds the design matrix asset would be fitted with.
func (e *Engine) DesignMatrix(asset string, factors *models.Panel) *models.DesignMatrix {
	return e.selector.BuildDesignMatrix(asset, InferRegion(asset), factors)
}

// Scenario generates a coherent stress scenario from factors.
func (e *Engine) Scenario(factors *models.Panel, shockFactor string, shockSize float64, tail Tail) models.ScenarioVector {
	return GenerateScenario(factors, shockFactor, shockSize, tail)
}
