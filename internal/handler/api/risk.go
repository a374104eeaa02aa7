package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"FactorLens/internal/domain/models"
	"FactorLens/internal/service/ratelimit"
	"FactorLens/internal/services/risk"
	"FactorLens/internal/usecase"
	xhttp "FactorLens/pkg/http"
	xlogger "FactorLens/pkg/logger"
)

// RiskQueries is the part of the risk service the HTTP API serves.
type RiskQueries interface {
	Refresh(ctx context.Context, window int) (*models.RunResult, error)
	LatestSummary(ctx context.Context) (models.RunSummary, error)
	Betas(ctx context.Context, asset string) (*models.BetaSeries, error)
	Exposures() (map[string]map[string]float64, error)
	DesignMatrix(asset string) (*models.DesignMatrix, error)
	Scenario(ctx context.Context, factor string, size *float64, tail string) (*models.ScenarioReport, error)
	Decomposition(asset string, lookback int) (models.VarianceSplit, error)
	Correlation(threshold float64) (models.CorrelationMatrix, []models.CorrelatedPair, error)
	Region(asset string) models.Region
	Health(ctx context.Context) error
}

// APIMetrics observes per-endpoint latency and failures.
type APIMetrics interface {
	ObserveAPI(endpoint string, d time.Duration, failed bool)
}

// RiskHandler serves the beta, scenario and diagnostics endpoints.
type RiskHandler struct {
	logger  *xlogger.Logger
	svc     RiskQueries
	metrics APIMetrics
	limiter *ratelimit.Limiter
}

func NewRiskHandler(logger *xlogger.Logger, svc RiskQueries, metrics APIMetrics, limiter *ratelimit.Limiter) *RiskHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RiskHandler{logger: logger, svc: svc, metrics: metrics, limiter: limiter}
}

func (h *RiskHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/health", h.observe("health", h.Health))
	g.GET("/runs/latest", h.observe("runs_latest", h.LatestRun))
	g.POST("/runs", h.observe("runs_create", h.TriggerRun))
	g.GET("/betas", h.observe("betas", h.Exposures))
	g.GET("/betas/:asset", h.observe("betas_asset", h.AssetBetas))
	g.GET("/design/:asset", h.observe("design", h.Design))
	g.GET("/region", h.observe("region", h.Region))
	g.GET("/scenario", h.observe("scenario", h.Scenario))
	g.GET("/decomposition/:asset", h.observe("decomposition", h.Decomposition))
	g.GET("/diagnostics/correlation", h.observe("correlation", h.Correlation))
}

func (h *RiskHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if h.metrics != nil {
			h.metrics.ObserveAPI(endpoint, time.Since(start), err != nil || c.Response().Status >= http.StatusInternalServerError)
		}
		return err
	}
}

// Health reports whether the result backend is reachable.
func (h *RiskHandler) Health(c echo.Context) error {
	if err := h.svc.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.ServiceUnavailableResponse(c, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *RiskHandler) LatestRun(c echo.Context) error {
	sum, err := h.svc.LatestSummary(c.Request().Context())
	if err != nil {
		return h.fail(c, "latest run", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, sum)
}

// TriggerRun runs a synchronous refresh. The window comes from the JSON body
// or the window query parameter.
func (h *RiskHandler) TriggerRun(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP()) {
		retry := h.limiter.RetryAfter(c.RealIP())
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		return h.fail(c, "trigger run", xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many refresh requests", http.StatusTooManyRequests))
	}

	req := &models.RefreshRequest{}
	if q := c.QueryParam("window"); q != "" {
		// zero would be replaced by the default window
		if req.Window = xhttp.ParseIntDefault(q, -1); req.Window == 0 {
			req.Window = -1
		}
	}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.Refresh(c.Request().Context(), req.Window)
	if err != nil {
		return h.fail(c, "trigger run", err)
	}
	return xhttp.CreatedResponse(c, res.Summary())
}

// Exposures returns the latest betas of every asset as an asset x factor heatmap.
func (h *RiskHandler) Exposures(c echo.Context) error {
	exp, err := h.svc.Exposures()
	if err != nil {
		return h.fail(c, "exposures", err)
	}
	return xhttp.SuccessResponse(c, exp)
}

func (h *RiskHandler) AssetBetas(c echo.Context) error {
	req := &models.AssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	series, err := h.svc.Betas(c.Request().Context(), req.Asset)
	if err != nil {
		return h.fail(c, "betas", err)
	}
	return xhttp.SuccessResponse(c, newBetaSeriesView(series))
}

func (h *RiskHandler) Design(c echo.Context) error {
	req := &models.AssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !risk.IsAsian(h.svc.Region(req.Asset)) {
		return h.fail(c, "design", xhttp.NotFoundErrorf("%s is not an Asian listing", req.Asset))
	}
	dm, err := h.svc.DesignMatrix(req.Asset)
	if err != nil {
		return h.fail(c, "design", err)
	}
	return xhttp.SuccessResponse(c, newDesignView(dm))
}

func (h *RiskHandler) Region(c echo.Context) error {
	req := &models.AssetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	region := h.svc.Region(req.Asset)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"asset":  req.Asset,
		"region": region,
		"asian":  risk.IsAsian(region),
	})
}

func (h *RiskHandler) Scenario(c echo.Context) error {
	req := &models.ScenarioRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var size *float64
	if c.QueryParams().Has("size") {
		size = &req.Size
	}
	report, err := h.svc.Scenario(c.Request().Context(), req.Factor, size, req.Tail)
	if err != nil {
		return h.fail(c, "scenario", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *RiskHandler) Decomposition(c echo.Context) error {
	req := &models.DecompositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	split, err := h.svc.Decomposition(req.Asset, req.Lookback)
	if err != nil {
		return h.fail(c, "decomposition", err)
	}
	return xhttp.SuccessResponse(c, split)
}

func (h *RiskHandler) Correlation(c echo.Context) error {
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, pairs, err := h.svc.Correlation(req.Threshold)
	if err != nil {
		return h.fail(c, "correlation", err)
	}
	values := make([][]*float64, len(m.Values))
	for i, row := range m.Values {
		values[i] = nullable(row)
	}
	if pairs == nil {
		pairs = []models.CorrelatedPair{}
	}
	return xhttp.SuccessResponse(c, correlationView{
		Factors:   m.Factors,
		Values:    values,
		Threshold: req.Threshold,
		Pairs:     pairs,
	})
}

// fail maps service errors onto the response envelope.
func (h *RiskHandler) fail(c echo.Context, op string, err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, risk.ErrUnknownAsset):
		appErr = xhttp.NotFoundError(err.Error())
	case errors.Is(err, usecase.ErrRefreshInProgress):
		appErr = xhttp.ConflictError("a refresh is already running")
	case errors.Is(err, risk.ErrNoUsableData) && c.Request().Method == http.MethodPost:
		appErr = xhttp.UnavailableError("no usable price data")
	case errors.Is(err, risk.ErrNoUsableData):
		appErr = xhttp.NotFoundError("no completed run available")
	case errors.Is(err, risk.ErrUnknownTail):
		appErr = xhttp.BadRequestError(err.Error())
	default:
		h.logger.Error(op+" failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Warn(op+" unavailable", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
