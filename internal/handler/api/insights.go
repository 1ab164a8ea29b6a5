package api

import (
	"github.com/labstack/echo/v4"

	"GapSight/internal/domain/models"
	"GapSight/internal/service/ratelimit"
	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
)

type InsightsHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.InsightsUseCase
	limiter *ratelimit.Limiter
}

// NewInsightsHandler wires the insights routes; a nil limiter leaves refresh unlimited.
func NewInsightsHandler(logger *xlogger.Logger, uc *usecase.InsightsUseCase, limiter *ratelimit.Limiter) *InsightsHandler {
	return &InsightsHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *InsightsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/insights")
	g.GET("", h.Get)
	g.GET("/workflows", h.Workflows)
	if h.limiter != nil {
		g.POST("/refresh", h.Refresh, h.limiter.Middleware("insights-refresh"))
	} else {
		g.POST("/refresh", h.Refresh)
	}
}

func (h *InsightsHandler) Get(c echo.Context) error {
	res, err := h.uc.Get(c.Request().Context())
	if err != nil {
		h.logger.Error("insights usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) Workflows(c echo.Context) error {
	res, err := h.uc.Workflows(c.Request().Context())
	if err != nil {
		h.logger.Error("workflows usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// Refresh answers 202 when the reload was queued and 200 when it already ran.
func (h *InsightsHandler) Refresh(c echo.Context) error {
	req := &models.RefreshInsightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	queued, err := h.uc.Refresh(c.Request().Context(), req.Reason)
	if err != nil {
		h.logger.Error("insights refresh error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("insights refresh requested",
		xlogger.String("reason", req.Reason), xlogger.Bool("queued", queued), xlogger.String("remote", c.RealIP()))
	if queued {
		return xhttp.AcceptedResponse(c, map[string]bool{"queued": true})
	}
	return xhttp.SuccessResponse(c, map[string]bool{"queued": false})
}
