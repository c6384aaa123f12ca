package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health. Returns a minimal, safe response
// suitable for unauthenticated access, same as the teacher's shape
// reduced to spec.md §6's exact contract ({"status":"ok"}).
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{Status: "ok"})
}
