package api

import (
	"github.com/labstack/echo/v4"

	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
)

// DashboardHandler serves the dashboard page and each of its charts.
type DashboardHandler struct {
	logger *xlogger.Logger
	uc     *usecase.DashboardUseCase
}

func NewDashboardHandler(logger *xlogger.Logger, uc *usecase.DashboardUseCase) *DashboardHandler {
	return &DashboardHandler{logger: logger, uc: uc}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/dashboard")
	g.GET("", h.Overview)
	g.GET("/followers", h.Followers)
	g.GET("/trend", h.Trend)
	g.GET("/content-types", h.ContentTypes)
	g.GET("/frequency", h.Frequency)
}

func (h *DashboardHandler) Overview(c echo.Context) error {
	res, err := h.uc.Overview(c.Request().Context())
	if err != nil {
		h.logger.Error("dashboard usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if len(res.Errors) > 0 {
		h.logger.Warn("dashboard served partially", xlogger.Any("errors", res.Errors))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Followers(c echo.Context) error {
	res, err := h.uc.Followers(c.Request().Context())
	if err != nil {
		h.logger.Error("followers usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Trend(c echo.Context) error {
	res, err := h.uc.Trend(c.Request().Context())
	if err != nil {
		h.logger.Error("trend usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) ContentTypes(c echo.Context) error {
	res, err := h.uc.ContentTypes(c.Request().Context())
	if err != nil {
		h.logger.Error("content types usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Frequency(c echo.Context) error {
	res, err := h.uc.Frequency(c.Request().Context())
	if err != nil {
		h.logger.Error("frequency usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}
