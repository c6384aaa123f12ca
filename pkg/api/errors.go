package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sealedreview/reviewpipeline/pkg/apierr"
)

// mapServiceError maps pkg/apierr's sentinels and typed validation
// error onto an HTTP response, the same switchboard shape as the
// teacher's mapServiceError.
func mapServiceError(err error) *echo.HTTPError {
	var valErr *apierr.ValidationError
	if errors.As(err, &valErr) {
		return echo.NewHTTPError(http.StatusBadRequest, valErr.Error())
	}
	if errors.Is(err, apierr.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	if errors.Is(err, apierr.ErrInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, apierr.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if errors.Is(err, apierr.ErrUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
