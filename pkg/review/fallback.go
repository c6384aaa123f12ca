package review

import "github.com/sealedreview/reviewpipeline/pkg/precheck"

// DeterministicFallback derives an Output from a pre-check bundle
// alone, with no LLM involved. Verdict is chosen by high-confidence
// count: >=3 high_risk, >=1 requires_changes, else
// safe_with_conditions. Risks are seeded from the bundle's critical
// categories; recommendations always include the manual-review note.
func DeterministicFallback(b precheck.Bundle, reason FallbackReason) Result {
	var verdict Verdict
	switch {
	case b.HighCount >= 3:
		verdict = VerdictHighRisk
	case b.HighCount >= 1:
		verdict = VerdictRequiresChanges
	default:
		verdict = VerdictSafeWithConditions
	}

	risks := make([]string, 0, len(b.CriticalCategories))
	for _, cat := range b.CriticalCategories {
		risks = append(risks, "elevated risk detected in category: "+string(cat))
	}

	out := Output{
		Assessment:      "Automated fallback assessment generated from deterministic pre-check signals; the external review service did not produce a usable result.",
		Risks:           risks,
		Assumptions:     []string{},
		Tradeoffs:       []string{},
		FailureModes:    []string{},
		Recommendations: []string{"manual review required"},
		Verdict:         verdict,
	}

	return Result{Output: out, FallbackUsed: true, FallbackReason: &reason}
}
