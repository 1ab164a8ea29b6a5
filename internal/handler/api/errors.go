package api

import (
	"context"
	"errors"
	"net/http"

	"GapSight/internal/services/charts"
	"GapSight/internal/services/timeseries"
	"GapSight/internal/services/upstream"
	"GapSight/internal/usecase"
	xhttp "GapSight/pkg/http"
)

// toAppError maps use case failures onto the public error codes.
func toAppError(err error) error {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case timeseries.IsValidation(err):
		return xhttp.InvalidSeriesError(err.Error()).WithError(err)
	case errors.Is(err, upstream.ErrUnknownReport):
		return xhttp.NotFoundError("unknown report").WithError(err)
	case errors.Is(err, charts.ErrNoData):
		return xhttp.NotFoundError("no growth data to draw").WithError(err)
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrChartsDisabled), errors.Is(err, usecase.ErrHistoryDisabled):
		return xhttp.ServiceUnavailableError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrRefreshInProgress):
		return xhttp.NewAppError("ERR_CONFLICT", "", err.Error(), http.StatusConflict).WithError(err)
	case upstream.IsUpstream(err):
		msg := "analytics API unavailable"
		if status, ok := upstream.StatusCode(err); ok {
			return xhttp.UpstreamError(msg).WithParam("upstream_status", status).WithError(err)
		}
		return xhttp.UpstreamError(msg).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "request timed out", http.StatusGatewayTimeout).WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
