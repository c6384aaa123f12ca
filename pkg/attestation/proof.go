// Package attestation computes the per-execution proof hash and
// maintains the hash-chained ledger that links proofs together,
// giving every decision record a tamper-evident seal.
//
// Grounded on `certenIO-certen-validator`'s receipt-verification idiom
// (`receipt_verifier.go`): fail-closed recomputation and byte-exact
// comparison as the sole mechanism for detecting tampering, applied
// here to both the proof hash and the ledger chain.
package attestation

import (
	"fmt"

	"github.com/sealedreview/reviewpipeline/pkg/canonhash"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
)

// ProofFingerprint is the canonicalized shape hashed to produce the
// execution-proof hash, exactly as spec.md §4.13 enumerates it.
type ProofFingerprint struct {
	ContractHash       string
	ContractVersion    string
	ReviewID           string
	Owner              string
	Repo               string
	PRNumber           int
	DecisionPath       string
	FinalState         string
	StateTransitions   []TransitionPair
	InvariantsTotal    int
	InvariantsWarn     int
	InvariantsError    int
	InvariantsFatal    int
	InvariantViolationIDs []string
	PostTotalChecked   int
	PostPassed         int
	PostViolationCount int
	PostViolationIDs   []string
	Verdict            *string
	AIInvoked          bool
	FallbackUsed       bool
	CommentPosted      bool
	ProcessingTimeMS   int64
	Timestamp          string
}

// TransitionPair is the {from,to} pair the proof hashes, deliberately
// omitting timestamp/reason so the proof is stable under re-canonicalization.
type TransitionPair struct {
	From string
	To   string
}

// ComputeProofHash canonicalizes fp and returns the first 32 hex chars
// of its SHA-256 digest.
func ComputeProofHash(fp ProofFingerprint) string {
	return canonhash.HashTruncated(fingerprintToMap(fp), canonhash.ProofHashLen)
}

func fingerprintToMap(fp ProofFingerprint) map[string]any {
	transitions := make([]any, len(fp.StateTransitions))
	for i, t := range fp.StateTransitions {
		transitions[i] = map[string]any{"from": t.From, "to": t.To}
	}

	var verdict any
	if fp.Verdict != nil {
		verdict = *fp.Verdict
	}

	return map[string]any{
		"contract_hash":    fp.ContractHash,
		"contract_version": fp.ContractVersion,
		"review_id":        fp.ReviewID,
		"pr": map[string]any{
			"owner":  fp.Owner,
			"repo":   fp.Repo,
			"number": fp.PRNumber,
		},
		"decision_path":     fp.DecisionPath,
		"final_state":       fp.FinalState,
		"state_transitions": transitions,
		"invariants": map[string]any{
			"total":         fp.InvariantsTotal,
			"warn":          fp.InvariantsWarn,
			"error":         fp.InvariantsError,
			"fatal":         fp.InvariantsFatal,
			"violation_ids": toAnySlice(fp.InvariantViolationIDs),
		},
		"postconditions": map[string]any{
			"total_checked":   fp.PostTotalChecked,
			"passed":          fp.PostPassed,
			"violation_count": fp.PostViolationCount,
			"violation_ids":   toAnySlice(fp.PostViolationIDs),
		},
		"verdict":            verdict,
		"ai_invoked":         fp.AIInvoked,
		"fallback_used":      fp.FallbackUsed,
		"comment_posted":     fp.CommentPosted,
		"processing_time_ms": fp.ProcessingTimeMS,
		"timestamp":          fp.Timestamp,
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// VerificationFailure is returned by VerifyExecutionProof when the
// recomputed hash disagrees with the one stored on the record.
type VerificationFailure struct {
	ReviewID string
	Expected string
	Got      string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("attestation: proof mismatch for %s: expected %s got %s", e.ReviewID, e.Expected, e.Got)
}

// VerifyExecutionProof recomputes the proof hash from rec and compares
// it against rec.ExecutionProofHash; this is the only mechanism that
// detects tampering of a decision record.
func VerifyExecutionProof(rec decision.Record) (bool, error) {
	fp := FingerprintFromRecord(rec)
	recomputed := ComputeProofHash(fp)
	if recomputed != rec.ExecutionProofHash {
		return false, &VerificationFailure{ReviewID: rec.ReviewID, Expected: rec.ExecutionProofHash, Got: recomputed}
	}
	return true, nil
}

// FingerprintFromRecord extracts a ProofFingerprint from a decision
// record, the inverse of how the orchestrator originally populated it.
func FingerprintFromRecord(rec decision.Record) ProofFingerprint {
	transitions := make([]TransitionPair, len(rec.StateTransitions))
	for i, t := range rec.StateTransitions {
		transitions[i] = TransitionPair{From: string(t.From), To: string(t.To)}
	}
	return ProofFingerprint{
		ContractHash:          rec.ContractHash,
		ContractVersion:       rec.ContractVersion,
		ReviewID:              rec.ReviewID,
		Owner:                 rec.PR.Owner,
		Repo:                  rec.PR.Repo,
		PRNumber:              rec.PR.PRNumber,
		DecisionPath:          rec.DecisionPath,
		FinalState:            string(rec.FinalState),
		StateTransitions:      transitions,
		InvariantsTotal:       rec.InvariantSummary.Total,
		InvariantsWarn:        rec.InvariantSummary.Warn,
		InvariantsError:       rec.InvariantSummary.Error,
		InvariantsFatal:       rec.InvariantSummary.Fatal,
		InvariantViolationIDs: rec.InvariantSummary.ViolationIDs,
		PostTotalChecked:      rec.PostconditionSummary.TotalChecked,
		PostPassed:            boolToInt(rec.PostconditionSummary.Passed),
		PostViolationCount:    rec.PostconditionSummary.ViolationCount,
		PostViolationIDs:      rec.PostconditionSummary.ViolationIDs,
		Verdict:               rec.Verdict,
		AIInvoked:             rec.AIInvoked,
		FallbackUsed:          rec.FallbackUsed,
		CommentPosted:         rec.CommentPosted,
		ProcessingTimeMS:      rec.ProcessingTimeMS,
		Timestamp:             rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
