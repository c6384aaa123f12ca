// Package merkleindex maintains the chronological sequence of
// execution-proof hashes and serves Merkle roots and inclusion proofs
// over it, backing the review-pipeline HTTP surface's /merkle/*
// endpoints.
//
// Grounded on `pkg/canonhash`'s tree primitives (package canonhash) for
// the hashing itself, and on the teacher's paired list/detail handler
// idiom (`pkg/api/handler_alert.go`'s list-then-fetch-by-id shape) for
// how the index is queried by review id.
package merkleindex

import (
	"errors"
	"sync"

	"github.com/sealedreview/reviewpipeline/pkg/canonhash"
)

// ErrUnknownReviewID is returned when a review id was never indexed.
var ErrUnknownReviewID = errors.New("merkleindex: unknown review id")

// leaf pairs an execution-proof hash with the review id it belongs to,
// kept alongside the plain hash slice so proofs can be looked up by id
// without a parallel index structure.
type leaf struct {
	reviewID string
	hash     string
}

// Index is the append-only, in-memory sequence of execution-proof
// hashes. Like pkg/attestation's Ledger, it is single-writer (guarded
// by a mutex): proofs are appended strictly in the order executions
// complete, and the Merkle root is recomputed fresh on every read
// rather than kept incrementally, which is immune to incremental-update
// bugs. Leaves are never pruned: the index grows by one leaf per
// execution for the life of the process.
type Index struct {
	mu     sync.RWMutex
	leaves []leaf
}

// New builds an empty index.
func New() *Index {
	return &Index{}
}

// Append records proofHash for reviewID as the next leaf.
func (idx *Index) Append(reviewID, proofHash string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.leaves = append(idx.leaves, leaf{reviewID: reviewID, hash: proofHash})
}

// Len reports how many leaves the index holds.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.leaves)
}

// Root returns the current Merkle root over every indexed proof hash.
func (idx *Index) Root() (string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return canonhash.Root(idx.hashesLocked())
}

// ProofFor returns the inclusion proof and leaf hash for reviewID,
// plus the root it proves membership against.
func (idx *Index) ProofFor(reviewID string) (leafHash string, steps []canonhash.ProofStep, root string, err error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	position := -1
	for i, l := range idx.leaves {
		if l.reviewID == reviewID {
			position = i
			break
		}
	}
	if position == -1 {
		return "", nil, "", ErrUnknownReviewID
	}

	hashes := idx.hashesLocked()
	steps, err = canonhash.Proof(hashes, position)
	if err != nil {
		return "", nil, "", err
	}
	root, err = canonhash.Root(hashes)
	if err != nil {
		return "", nil, "", err
	}
	return hashes[position], steps, root, nil
}

// Verify re-derives the root from leaf+proof and reports whether it
// matches the supplied root, without requiring the caller to know the
// reviewID or consulting any Index.
func Verify(leafHash string, steps []canonhash.ProofStep, root string) bool {
	return canonhash.Verify(leafHash, steps, root)
}

func (idx *Index) hashesLocked() []string {
	hashes := make([]string, len(idx.leaves))
	for i, l := range idx.leaves {
		hashes[i] = l.hash
	}
	return hashes
}
