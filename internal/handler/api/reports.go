package api

import (
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"GapSight/internal/domain/models"
	"GapSight/internal/service/ratelimit"
	"GapSight/internal/services/upstream"
	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
)

type ReportsHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.ReportsUseCase
	limiter *ratelimit.Limiter
}

func NewReportsHandler(logger *xlogger.Logger, uc *usecase.ReportsUseCase, limiter *ratelimit.Limiter) *ReportsHandler {
	return &ReportsHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/reports")
	if h.limiter != nil {
		g.Use(h.limiter.Middleware("reports"))
	}
	g.GET("/:name", h.Download)
}

// Download streams the export straight from the upstream to the client.
func (h *ReportsHandler) Download(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	kind, format, err := upstream.SplitReportName(req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	w := &reportWriter{res: c.Response(), name: req.Name}
	rep, err := h.uc.Download(c.Request().Context(), kind, format, w)
	if err != nil {
		if w.started {
			// Headers are gone, the client sees a truncated file.
			h.logger.Error("report interrupted", xlogger.String("report", req.Name), xlogger.Error(err))
			return nil
		}
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if !w.started {
		w.writeHeader(rep)
	}
	return nil
}

var reportTypes = map[string]string{
	".csv": "text/csv; charset=utf-8",
	".pdf": "application/pdf",
}

// reportWriter commits the response headers on the first body byte, so a failure
// before that can still be answered with a JSON error.
type reportWriter struct {
	res     *echo.Response
	name    string
	started bool
}

func (w *reportWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.writeHeader(models.Report{Name: w.name})
	}
	return w.res.Write(p)
}

func (w *reportWriter) writeHeader(rep models.Report) {
	w.started = true
	ct := rep.ContentType
	if ct == "" {
		ct = reportTypes[path.Ext(w.name)]
	}
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	cd := rep.ContentDisposition
	if cd == "" {
		cd = mime.FormatMediaType("attachment", map[string]string{"filename": w.name})
	}
	h := w.res.Header()
	h.Set(echo.HeaderContentType, ct)
	h.Set(echo.HeaderContentDisposition, cd)
	w.res.WriteHeader(http.StatusOK)
}
