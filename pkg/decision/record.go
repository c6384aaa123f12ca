// Package decision builds the decision record — the single
// append-only artifact summarizing one execution — and its
// append-only ring-buffer history, dual-backed (in-memory bound 100,
// shared-store bound 500).
//
// Grounded on the teacher's response-wrapper and append-only timeline
// idiom (`pkg/models/timeline.go`): a DTO assembled in a fixed field
// order from several upstream results, plus a history accessor
// returning newest-first.
package decision

import (
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/fsm"
	"github.com/sealedreview/reviewpipeline/pkg/invariant"
	"github.com/sealedreview/reviewpipeline/pkg/postcondition"
)

// PRCoordinates names the pull request an execution processed.
type PRCoordinates struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
}

// PrecheckSummary is the trimmed pre-check bundle embedded on a
// decision record (full locations/examples are not retained).
type PrecheckSummary struct {
	HighCount          int      `json:"high_count"`
	MediumCount        int      `json:"medium_count"`
	LowCount           int      `json:"low_count"`
	CriticalCategories []string `json:"critical_categories"`
}

// Record is the decision record. Field order mirrors spec.md §3's
// assembly order: trace fields, invariant summary, state history,
// postcondition result, formally_valid, contract identity, proof hash,
// ledger hash.
type Record struct {
	ReviewID  string    `json:"review_id"`
	Timestamp time.Time `json:"timestamp"`
	PR        PRCoordinates `json:"pr"`

	DecisionPath  string `json:"decision_path"`
	GateReason    string `json:"gate_reason"`
	AIInvoked     bool   `json:"ai_invoked"`
	AIBlocked     bool   `json:"ai_blocked"`
	FallbackUsed  bool   `json:"fallback_used"`
	FallbackReason string `json:"fallback_reason,omitempty"`

	PrecheckSummary PrecheckSummary `json:"precheck_summary"`
	Verdict         *string         `json:"verdict"`
	CommentPosted   bool            `json:"comment_posted"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	InstanceMode    string          `json:"instance_mode"`
	FaultsInjected  []string        `json:"faults_injected"`

	InvariantSummary invariant.Summary `json:"invariant_violations"`

	StateTransitions []fsm.Transition `json:"state_transitions"`
	FinalState       fsm.State        `json:"final_state"`

	PostconditionSummary postcondition.Report `json:"postcondition_summary"`
	FormallyValid        bool                 `json:"formally_valid"`

	ContractVersion string `json:"contract_version"`
	ContractHash    string `json:"contract_hash"`

	ExecutionProofHash  string `json:"execution_proof_hash"`
	LedgerHash          string `json:"ledger_hash"`
	PreviousLedgerHash  string `json:"previous_ledger_hash"`
}
