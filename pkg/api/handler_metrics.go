package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// metricsHandler handles GET /metrics, returning the read-only
// snapshot spec.md §4.15 specifies.
func (s *Server) metricsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.metricsReg.Snapshot())
}
