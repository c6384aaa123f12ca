package contract

import (
	"fmt"
	"strings"
)

// MismatchSeverity classifies how serious a detected drift between the
// declared active contract and the live, rebuilt one is.
type MismatchSeverity string

const (
	MismatchFatal MismatchSeverity = "fatal"
	MismatchError MismatchSeverity = "error"
)

// Mismatch is one detected difference between the active and live contracts.
type Mismatch struct {
	Field    string
	Severity MismatchSeverity
	Detail   string
}

// ValidationResult is the outcome of comparing an active contract
// against the live one rebuilt from current code.
type ValidationResult struct {
	Active       ExecutionContract
	Live         ExecutionContract
	Mismatches   []Mismatch
	HasFatal     bool
}

// OK reports whether the live contract matches the active one closely
// enough to boot (no fatal mismatches).
func (r ValidationResult) OK() bool { return !r.HasFatal }

// Validate compares the live contract (which the caller rebuilds from
// current code via Build) against the declared active contract, field by field,
// exactly as spec.md §4.2 enumerates: version mismatch is always
// fatal; state or invariant/postcondition id changes are fatal;
// severity-only changes to an unchanged id set are errors; a hash
// mismatch with no structural diff found is itself fatal (it means
// something outside the compared fields moved, which must not pass
// silently).
func Validate(active, live ExecutionContract) ValidationResult {
	result := ValidationResult{Active: active, Live: live}

	if active.Version != live.Version {
		result.add(Mismatch{Field: "version", Severity: MismatchFatal,
			Detail: fmt.Sprintf("active=%s live=%s", active.Version, live.Version)})
	}

	if added, removed := diffStrings(active.FSMSchema.States, live.FSMSchema.States); len(added)+len(removed) > 0 {
		result.add(Mismatch{Field: "fsm_schema.states", Severity: MismatchFatal,
			Detail: fmt.Sprintf("added=%v removed=%v", added, removed)})
	}
	if added, removed := diffStrings(active.FSMSchema.TerminalStates, live.FSMSchema.TerminalStates); len(added)+len(removed) > 0 {
		result.add(Mismatch{Field: "fsm_schema.terminal_states", Severity: MismatchFatal,
			Detail: fmt.Sprintf("added=%v removed=%v", added, removed)})
	}

	compareRuleSchema(&result, "invariant_schema", active.InvariantSchema, live.InvariantSchema)
	compareRuleSchema(&result, "postcondition_schema", active.PostconditionSchema, live.PostconditionSchema)

	if active.DecisionSchemaHash != live.DecisionSchemaHash {
		result.add(Mismatch{Field: "decision_schema_hash", Severity: MismatchFatal,
			Detail: fmt.Sprintf("active=%s live=%s", active.DecisionSchemaHash, live.DecisionSchemaHash)})
	}

	if active.ContractHash != live.ContractHash && len(result.Mismatches) == 0 {
		result.add(Mismatch{Field: "contract_hash", Severity: MismatchFatal,
			Detail: fmt.Sprintf("hash differs (active=%s live=%s) with no structural diff found", active.ContractHash, live.ContractHash)})
	}

	return result
}

func compareRuleSchema(result *ValidationResult, field string, active, live RuleSchema) {
	added, removed := diffStrings(active.IDs, live.IDs)
	if len(added)+len(removed) > 0 {
		result.add(Mismatch{Field: field + ".ids", Severity: MismatchFatal,
			Detail: fmt.Sprintf("added=%v removed=%v", added, removed)})
		return
	}
	for _, id := range active.IDs {
		if active.SeverityMap[id] != live.SeverityMap[id] {
			result.add(Mismatch{Field: field + ".severity." + id, Severity: MismatchError,
				Detail: fmt.Sprintf("active=%s live=%s", active.SeverityMap[id], live.SeverityMap[id])})
		}
	}
}

func (r *ValidationResult) add(m Mismatch) {
	r.Mismatches = append(r.Mismatches, m)
	if m.Severity == MismatchFatal {
		r.HasFatal = true
	}
}

func diffStrings(active, live []string) (added, removed []string) {
	activeSet := make(map[string]bool, len(active))
	for _, s := range active {
		activeSet[s] = true
	}
	liveSet := make(map[string]bool, len(live))
	for _, s := range live {
		liveSet[s] = true
	}
	for _, s := range live {
		if !activeSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range active {
		if !liveSet[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// DiagnosticDump renders a human-readable report for the fatal-abort
// path: the process logs this before calling os.Exit(1).
func DiagnosticDump(r ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "execution contract validation failed (active hash=%s live hash=%s)\n", r.Active.ContractHash, r.Live.ContractHash)
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "  [%s] %s: %s\n", m.Severity, m.Field, m.Detail)
	}
	b.WriteString("bump contract.Version and update the declared active contract if this drift is intentional\n")
	return b.String()
}
