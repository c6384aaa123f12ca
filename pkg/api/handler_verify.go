package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sealedreview/reviewpipeline/pkg/apierr"
	"github.com/sealedreview/reviewpipeline/pkg/attestation"
)

// verifyHandler handles GET /verify/:review_id: recomputes the
// execution proof hash and compares it against the stored one.
func (s *Server) verifyHandler(c *echo.Context) error {
	id := c.Param("review_id")
	rec, ok := s.history.Get(c.Request().Context(), id)
	if !ok {
		return mapServiceError(apierr.ErrNotFound)
	}

	valid, err := attestation.VerifyExecutionProof(rec)
	if err != nil {
		return c.JSON(http.StatusConflict, &VerifyResponse{Valid: false, ReviewID: id, ExecutionProofHash: rec.ExecutionProofHash})
	}

	return c.JSON(http.StatusOK, &VerifyResponse{Valid: valid, ReviewID: id, ExecutionProofHash: rec.ExecutionProofHash})
}
