// Package contract implements the execution contract: a schema-hash
// bound description of states, invariants, and postconditions that
// must match between the running binary and a declared "active"
// contract at boot, aborting startup on mismatch.
//
// Grounded on the teacher's fail-fast config validation idiom
// (`pkg/config/validator.go`'s `Validator.ValidateAll()` chaining
// severity-free `validateX` calls that return wrapped errors): this
// package generalizes that one step further by making the checks
// severity-classified and comparing two schema snapshots rather than
// one config against static rules.
package contract

import (
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/canonhash"
	"github.com/sealedreview/reviewpipeline/pkg/fsm"
	"github.com/sealedreview/reviewpipeline/pkg/invariant"
	"github.com/sealedreview/reviewpipeline/pkg/postcondition"
)

// Version is the contract's declared version. Bump this whenever a
// deliberate, reviewed change to states/invariants/postconditions
// ships; the validator treats a version bump as the only sanctioned
// way to accept a schema change.
const Version = "1.0.0"

// FSMSchema summarizes the state machine for hashing.
type FSMSchema struct {
	States         []string `json:"states"`
	TerminalStates []string `json:"terminal_states"`
	StateCount     int      `json:"state_count"`
}

// RuleSchema summarizes an invariant or postcondition registry for
// hashing: ids, count, and a severity map.
type RuleSchema struct {
	IDs          []string          `json:"ids"`
	Count        int               `json:"count"`
	SeverityMap  map[string]string `json:"severity_map"`
}

// ExecutionContract is the frozen schema snapshot plus its stable hash.
type ExecutionContract struct {
	Version             string     `json:"version"`
	FSMSchema           FSMSchema  `json:"fsm_schema"`
	InvariantSchema     RuleSchema `json:"invariant_schema"`
	PostconditionSchema RuleSchema `json:"postcondition_schema"`
	DecisionSchemaHash  string     `json:"decision_schema_hash"`
	ContractHash        string     `json:"contract_hash"`
	CreatedAt           time.Time  `json:"created_at"`
	Immutable           bool       `json:"immutable"`
}

// decisionSchemaFields is the stable list of top-level decision-record
// field names hashed to produce DecisionSchemaHash. It is declared
// here (not derived by reflection) so the hash only changes when a
// deliberate edit to this list ships alongside a version bump.
var decisionSchemaFields = []string{
	"review_id", "timestamp", "pr", "decision_path",
	"gate_reason", "ai_invoked", "ai_blocked", "fallback_used", "fallback_reason",
	"precheck_summary", "verdict", "comment_posted", "processing_time_ms",
	"instance_mode", "faults_injected", "invariant_violations", "state_transitions",
	"final_state", "postcondition_summary", "formally_valid", "contract_version",
	"contract_hash", "execution_proof_hash", "ledger_hash", "previous_ledger_hash",
}

func decisionSchemaHash() string {
	items := make([]any, len(decisionSchemaFields))
	for i, f := range decisionSchemaFields {
		items[i] = f
	}
	return canonhash.HashTruncated(items, canonhash.ContractHashLen)
}

func fsmSchema() FSMSchema {
	states := sortedStrings(statesToStrings(fsm.AllStates()))
	terminal := sortedStrings(statesToStrings(fsm.TerminalStates()))
	return FSMSchema{States: states, TerminalStates: terminal, StateCount: len(states)}
}

func invariantSchema() RuleSchema {
	ids := make([]string, 0, len(invariant.All))
	sev := make(map[string]string, len(invariant.All))
	for _, inv := range invariant.All {
		ids = append(ids, inv.ID)
		sev[inv.ID] = string(inv.Severity)
	}
	ids = sortedStrings(ids)
	return RuleSchema{IDs: ids, Count: len(ids), SeverityMap: sev}
}

func postconditionSchema() RuleSchema {
	ids := make([]string, 0, len(postcondition.All))
	sev := make(map[string]string, len(postcondition.All))
	for _, pc := range postcondition.All {
		ids = append(ids, pc.ID)
		sev[pc.ID] = string(pc.Severity)
	}
	ids = sortedStrings(ids)
	return RuleSchema{IDs: ids, Count: len(ids), SeverityMap: sev}
}

// Build introspects the live fsm/invariant/postcondition registries
// and produces the current ExecutionContract, with createdAt supplied
// by the caller (this package never calls time.Now() itself, so a
// contract's creation timestamp is reproducible in tests).
func Build(createdAt time.Time) ExecutionContract {
	c := ExecutionContract{
		Version:             Version,
		FSMSchema:           fsmSchema(),
		InvariantSchema:     invariantSchema(),
		PostconditionSchema: postconditionSchema(),
		DecisionSchemaHash:  decisionSchemaHash(),
		CreatedAt:           createdAt,
		Immutable:           true,
	}
	c.ContractHash = computeContractHash(c)
	return c
}

func computeContractHash(c ExecutionContract) string {
	payload := map[string]any{
		"version":              c.Version,
		"states":               toAnySlice(c.FSMSchema.States),
		"terminal_states":      toAnySlice(c.FSMSchema.TerminalStates),
		"invariant_ids":        toAnySlice(c.InvariantSchema.IDs),
		"invariant_severities": severityMapToAny(c.InvariantSchema.SeverityMap),
		"postcondition_ids":    toAnySlice(c.PostconditionSchema.IDs),
		"postcondition_severities": severityMapToAny(c.PostconditionSchema.SeverityMap),
		"decision_schema_hash": c.DecisionSchemaHash,
	}
	return canonhash.HashTruncated(payload, canonhash.ContractHashLen)
}

func statesToStrings(states []fsm.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func severityMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedStrings(ss []string) []string {
	out := append([]string(nil), ss...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
