package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/sealedreview/reviewpipeline/pkg/apierr"
	"github.com/sealedreview/reviewpipeline/pkg/canonhash"
	"github.com/sealedreview/reviewpipeline/pkg/merkleindex"
)

// merkleRootHandler handles GET /merkle/root.
func (s *Server) merkleRootHandler(c *echo.Context) error {
	root, err := s.merkleIndex.Root()
	if err != nil {
		if errors.Is(err, canonhash.ErrEmptyLeafSet) {
			return mapServiceError(apierr.ErrNotFound)
		}
		return mapServiceError(apierr.ErrUnavailable)
	}
	return c.JSON(http.StatusOK, &MerkleRootResponse{
		Root:      root,
		LeafCount: s.merkleIndex.Len(),
		Algorithm: merkleAlgorithm,
	})
}

// merkleProofHandler handles GET /merkle/proof/:review_id.
func (s *Server) merkleProofHandler(c *echo.Context) error {
	id := c.Param("review_id")
	leafHash, steps, root, err := s.merkleIndex.ProofFor(id)
	if err != nil {
		if errors.Is(err, merkleindex.ErrUnknownReviewID) {
			return mapServiceError(apierr.ErrNotFound)
		}
		return mapServiceError(apierr.ErrUnavailable)
	}

	proof := make([]merkleProofStepView, len(steps))
	for i, st := range steps {
		proof[i] = merkleProofStepView{Position: string(st.Position), Hash: st.Hash}
	}

	return c.JSON(http.StatusOK, &MerkleProofResponse{
		ReviewID:           id,
		ExecutionProofHash: leafHash,
		Proof:              proof,
		Root:               root,
		Algorithm:          merkleAlgorithm,
	})
}

// merkleVerifyHandler handles POST /merkle/verify: checks an arbitrary
// (leaf, proof, root) triple without requiring a known review id.
func (s *Server) merkleVerifyHandler(c *echo.Context) error {
	var req MerkleVerifyRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.NewValidationError("body", "malformed JSON"))
	}

	steps := make([]canonhash.ProofStep, len(req.Proof))
	for i, p := range req.Proof {
		steps[i] = canonhash.ProofStep{Position: canonhash.Position(p.Position), Hash: p.Hash}
	}

	recomputed := canonhash.Recompute(req.LeafHash, steps)
	valid := recomputed == req.Root && recomputed != ""

	status := http.StatusOK
	if !valid {
		status = http.StatusConflict
	}
	return c.JSON(status, &MerkleVerifyResponse{Valid: valid, RecomputedRoot: recomputed})
}
