package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"GapSight/internal/domain/models"
	"GapSight/internal/services/timeseries"
	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
	"GapSight/pkg/util"
)

// CompetitorsHandler serves the competitors page, the growth chart and the snapshot archive.
type CompetitorsHandler struct {
	logger *xlogger.Logger
	uc     *usecase.CompetitorsUseCase
}

func NewCompetitorsHandler(logger *xlogger.Logger, uc *usecase.CompetitorsUseCase) *CompetitorsHandler {
	return &CompetitorsHandler{logger: logger, uc: uc}
}

func (h *CompetitorsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/competitors")
	g.GET("", h.View)
	g.GET("/growth", h.Growth)
	g.GET("/growth.png", h.GrowthPNG)
	g.GET("/history", h.History)
}

func (h *CompetitorsHandler) View(c echo.Context) error {
	res, err := h.uc.View(c.Request().Context())
	if err != nil {
		h.logger.Error("competitors usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *CompetitorsHandler) Growth(c echo.Context) error {
	req := &models.GrowthRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	policy, verr := parsePolicy(req.Policy)
	if verr != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{*verr})
	}

	a, source, err := h.uc.GrowthChart(c.Request().Context(), policy)
	if err != nil {
		h.logger.Error("growth usecase error", xlogger.Error(err), xlogger.String("policy", req.Policy))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, models.NewGrowthChart(a, source))
}

func (h *CompetitorsHandler) GrowthPNG(c echo.Context) error {
	req := &models.GrowthChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	policy, verr := parsePolicy(req.Policy)
	if verr != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{*verr})
	}

	png, err := h.uc.GrowthPNG(c.Request().Context(), policy, req.Width, req.Height)
	if err != nil {
		h.logger.Error("growth chart usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return c.Blob(http.StatusOK, "image/png", png)
}

// History aligns archived snapshots. A date-only "to" includes that whole day.
func (h *CompetitorsHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, _, verr := parseBound("from", req.From)
	if verr != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{*verr})
	}
	to, dateOnly, verr := parseBound("to", req.To)
	if verr != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{*verr})
	}
	if dateOnly {
		to = util.EndOfDay(to)
	}

	a, err := h.uc.History(c.Request().Context(), util.SplitList(req.Accounts), from, to)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, models.NewGrowthChart(a, usecase.GrowthSourceArchive))
}

// parseBound returns the zero time for an empty value.
func parseBound(field, value string) (time.Time, bool, *xhttp.ValidationError) {
	if value == "" {
		return time.Time{}, false, nil
	}
	t, dateOnly, ok := util.ParseTime(value)
	if !ok {
		return time.Time{}, false, &xhttp.ValidationError{
			Code:    "ERR_TIME",
			Field:   field,
			Message: field + " must be YYYY-MM-DD, RFC3339 or unix seconds",
		}
	}
	return t, dateOnly, nil
}

func parsePolicy(value string) (timeseries.DuplicatePolicy, *xhttp.ValidationError) {
	p, err := timeseries.ParseDuplicatePolicy(value)
	if err != nil {
		return p, &xhttp.ValidationError{
			Code:    "ERR_ONEOF",
			Field:   "policy",
			Message: "policy must be one of: first, last, reject",
		}
	}
	return p, nil
}
