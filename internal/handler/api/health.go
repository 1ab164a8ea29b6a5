package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"GapSight/internal/domain/service"
	xhttp "GapSight/pkg/http"
	xlogger "GapSight/pkg/logger"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler reports the upstream API and any extra infrastructure checks.
type HealthHandler struct {
	logger  *xlogger.Logger
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthHandler(logger *xlogger.Logger, src service.AnalyticsSource) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		checks:  map[string]Check{"upstream": src.Health},
		timeout: 3 * time.Second,
	}
}

// AddCheck registers another dependency under name.
func (h *HealthHandler) AddCheck(name string, c Check) {
	if c != nil {
		h.checks[name] = c
	}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/livez", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	res := h.run(ctx)
	if res.Status != "ok" {
		h.logger.Warn("health check failed", xlogger.Any("checks", res.Checks))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *HealthHandler) run(ctx context.Context) HealthStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = "ok"
			if err := h.checks[name](ctx); err != nil {
				results[i] = err.Error()
			}
		}()
	}
	wg.Wait()

	res := HealthStatus{Status: "ok", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		res.Checks[name] = results[i]
		if results[i] != "ok" {
			res.Status = "degraded"
		}
	}
	return res
}
