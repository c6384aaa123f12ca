package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/sealedreview/reviewpipeline/pkg/apierr"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
)

const (
	defaultDecisionsLimit = 50
	maxDecisionsLimit     = 100
)

// listDecisionsHandler handles GET /decisions?limit=N.
func (s *Server) listDecisionsHandler(c *echo.Context) error {
	limit := defaultDecisionsLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxDecisionsLimit {
			return mapServiceError(apierr.NewValidationError("limit", "must be an integer between 1 and 100"))
		}
		limit = n
	}

	recs := s.history.GetRecent(c.Request().Context(), limit)
	views := make([]DecisionView, len(recs))
	for i, r := range recs {
		views[i] = toDecisionView(r)
	}

	return c.JSON(http.StatusOK, &DecisionsResponse{
		Decisions: views,
		Meta:      DecisionsMeta{Count: len(views), Limit: limit},
	})
}

// getDecisionHandler handles GET /decisions/:id, a companion to
// /verify/:review_id (SPEC_FULL.md's supplemented-feature #4).
func (s *Server) getDecisionHandler(c *echo.Context) error {
	id := c.Param("id")
	rec, ok := s.history.Get(c.Request().Context(), id)
	if !ok {
		return mapServiceError(apierr.ErrNotFound)
	}
	return c.JSON(http.StatusOK, toDecisionView(rec))
}

func toDecisionView(r decision.Record) DecisionView {
	return DecisionView{
		ReviewID:       r.ReviewID,
		Timestamp:      r.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		RepoFullName:   r.PR.Owner + "/" + r.PR.Repo,
		PRNumber:       r.PR.PRNumber,
		DecisionPath:   r.DecisionPath,
		GateReason:     r.GateReason,
		AIInvoked:      r.AIInvoked,
		FallbackUsed:   r.FallbackUsed,
		Verdict:        r.Verdict,
		CommentPosted:  r.CommentPosted,
		FinalState:     string(r.FinalState),
		FormallyValid:  r.FormallyValid,
		FaultsInjected: r.FaultsInjected,
	}
}
