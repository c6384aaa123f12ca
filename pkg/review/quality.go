package review

import "strings"

var boilerplatePhrases = []string{
	"looks good", "lgtm", "no issues found", "code is fine",
	"seems okay", "appears correct", "looks fine to me",
}

const minAssessmentLength = 20

// QualityReject returns a non-empty rejection reason if out fails the
// quality gate, or "" if out passes. Checks, in the order spec.md
// §4.10 lists them: boilerplate phrasing, assessment length, zero
// total items across the five list fields, verdict=safe with
// non-empty risks, verdict=high_risk with empty risks.
func QualityReject(out Output) string {
	lower := strings.ToLower(out.Assessment)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return "boilerplate phrase: " + phrase
		}
	}
	if len(out.Assessment) < minAssessmentLength {
		return "assessment too short"
	}
	total := len(out.Risks) + len(out.Assumptions) + len(out.Tradeoffs) + len(out.FailureModes) + len(out.Recommendations)
	if total == 0 {
		return "zero total items across risks/assumptions/tradeoffs/failure_modes/recommendations"
	}
	if out.Verdict == VerdictSafe && len(out.Risks) > 0 {
		return "verdict=safe with non-empty risks"
	}
	if out.Verdict == VerdictHighRisk && len(out.Risks) == 0 {
		return "verdict=high_risk with empty risks"
	}
	return ""
}
