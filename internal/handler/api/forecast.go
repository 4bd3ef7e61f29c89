package api

import (
	"errors"
	"net/http"
	"time"

	models "SignalCast/internal/domain/models"
	domrepo "SignalCast/internal/domain/repository"
	"SignalCast/internal/usecase"
	xhttp "SignalCast/pkg/http"
	xlogger "SignalCast/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthFunc reports named component checks; false means degraded.
type HealthFunc func() map[string]bool

// ForecastHandler serves the forecasting API.
type ForecastHandler struct {
	logger     *xlogger.Logger
	prediction *usecase.PredictionUseCase
	analyze    *usecase.AnalyzeUseCase
	resolution *usecase.ResolutionUseCase
	history    *usecase.HistoryUseCase
	prices     *usecase.PriceUseCase
	health     HealthFunc
	mw         []echo.MiddlewareFunc
}

func NewForecastHandler(
	logger *xlogger.Logger,
	prediction *usecase.PredictionUseCase,
	analyze *usecase.AnalyzeUseCase,
	resolution *usecase.ResolutionUseCase,
	history *usecase.HistoryUseCase,
	prices *usecase.PriceUseCase,
	health HealthFunc,
) *ForecastHandler {
	return &ForecastHandler{
		logger:     logger,
		prediction: prediction,
		analyze:    analyze,
		resolution: resolution,
		history:    history,
		prices:     prices,
		health:     health,
	}
}

// Use adds middleware to the /api/v1 group, e.g. rate limiting.
func (h *ForecastHandler) Use(mw ...echo.MiddlewareFunc) { h.mw = append(h.mw, mw...) }

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1", h.mw...)
	g.GET("/pairs", h.Pairs)
	g.GET("/prediction", h.Predict)
	g.GET("/analyze", h.Analyze)
	g.GET("/predictions/recent", h.Recent)
	g.POST("/predictions/resolve-due", h.ResolveDue)
	g.POST("/predictions/:id/resolve", h.Resolve)
	g.GET("/accuracy", h.Accuracy)
	g.GET("/price/current", h.CurrentPrice)
	g.POST("/price/manual", h.ManualPrice)
}

func (h *ForecastHandler) Health(c echo.Context) error {
	checks := map[string]bool{}
	if h.health != nil {
		checks = h.health()
	}
	status := "ok"
	for _, ok := range checks {
		if !ok {
			status = "degraded"
		}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

func (h *ForecastHandler) Pairs(c echo.Context) error {
	pairs := h.prices.Pairs()
	return xhttp.ListResponse(c, pairs, int64(len(pairs)))
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.prediction.Predict(c.Request().Context(), req.Symbol, domrepo.Timeframe(req.Timeframe))
	if err != nil {
		return h.fail(c, "prediction", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.analyze.Analyze(c.Request().Context(), usecase.AnalyzeParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.Timeframe),
		Policy:    req.Policy,
		Threshold: req.Threshold,
		Bars:      req.Bars,
	})
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Recent(c echo.Context) error {
	req := &models.RecentPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "recent", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ForecastHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.history.Accuracy(c.Request().Context(), req.Symbol, req.Timeframe)
	if err != nil {
		return h.fail(c, "accuracy", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *ForecastHandler) Resolve(c echo.Context) error {
	req := &models.ResolvePredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p, err := h.resolution.Resolve(c.Request().Context(), uuid.MustParse(req.ID), req.Price)
	if errors.Is(err, domrepo.ErrPredictionNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("prediction %s not found", req.ID).
			WithParam("id", req.ID).
			WithError(err))
	}
	if err != nil {
		return h.fail(c, "resolve", err)
	}
	return xhttp.SuccessResponse(c, p)
}

func (h *ForecastHandler) ResolveDue(c echo.Context) error {
	sum, err := h.resolution.ResolveDue(c.Request().Context())
	if err != nil {
		return h.fail(c, "resolve_due", err)
	}
	return xhttp.SuccessResponse(c, sum)
}

func (h *ForecastHandler) CurrentPrice(c echo.Context) error {
	req := &models.CurrentPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	q, err := h.prices.Current(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "current_price", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, q)
}

func (h *ForecastHandler) ManualPrice(c echo.Context) error {
	req := &models.ManualPriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bar, err := h.prices.Manual(c.Request().Context(), req.Symbol, req.Price)
	if err != nil {
		return h.fail(c, "manual_price", err)
	}
	return xhttp.CreatedResponse(c, bar)
}

func (h *ForecastHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrSymbolRequired),
		errors.Is(err, usecase.ErrInvalidPrice),
		errors.Is(err, usecase.ErrInvalidArgument):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrPredictionNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrAlreadyResolved):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, domrepo.ErrSeriesUnavailable):
		return xhttp.ServiceUnavailableError("price data unavailable").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
