package invariant

import (
	"fmt"
)

// FatalViolation is raised by Enforce when any fatal-severity
// invariant fails.
type FatalViolation struct {
	Violations []Violation
}

func (e *FatalViolation) Error() string {
	return fmt.Sprintf("invariant: %d fatal violation(s), first: %s", len(e.Violations), e.Violations[0].ID)
}

// Check evaluates every invariant in ids (or all of them, if ids is
// empty) against ctx and returns every violation found. Check calls
// each predicate directly, so a predicate that panics propagates the
// panic to the caller; SafeCheck is the variant that recovers it and
// records it as a violation.
func Check(ctx Context, ids ...string) []Violation {
	var violations []Violation
	for _, inv := range selected(ids) {
		if !inv.Predicate(ctx) {
			violations = append(violations, Violation{ID: inv.ID, Description: inv.Description, Severity: inv.Severity})
		}
	}
	return violations
}

// SafeCheck is Check's non-throwing variant: a predicate panic is
// recovered and does not propagate, but is recorded as a violation of
// the invariant it belongs to (so a broken predicate is visible, not
// silently swallowed) rather than aborting the whole scan.
func SafeCheck(ctx Context, ids ...string) []Violation {
	var violations []Violation
	for _, inv := range selected(ids) {
		if !safePredicate(inv, ctx) {
			violations = append(violations, Violation{ID: inv.ID, Description: inv.Description, Severity: inv.Severity})
		}
	}
	return violations
}

func safePredicate(inv Invariant, ctx Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return inv.Predicate(ctx)
}

// Enforce raises FatalViolation if SafeCheck finds any fatal-severity
// violation; otherwise it returns every violation found (including
// non-fatal ones) without error.
func Enforce(ctx Context, ids ...string) ([]Violation, error) {
	violations := SafeCheck(ctx, ids...)
	var fatal []Violation
	for _, v := range violations {
		if v.Severity == SeverityFatal {
			fatal = append(fatal, v)
		}
	}
	if len(fatal) > 0 {
		return violations, &FatalViolation{Violations: fatal}
	}
	return violations, nil
}

func selected(ids []string) []Invariant {
	if len(ids) == 0 {
		return All
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Invariant
	for _, inv := range All {
		if want[inv.ID] {
			out = append(out, inv)
		}
	}
	return out
}

// Summary tallies violations by severity, the shape embedded in a
// decision record.
type Summary struct {
	Total        int      `json:"total"`
	Warn         int      `json:"warn"`
	Error        int      `json:"error"`
	Fatal        int      `json:"fatal"`
	ViolationIDs []string `json:"violation_ids"`
}

// Summarize reduces a violation list to its Summary, with
// ViolationIDs sorted for hash stability.
func Summarize(violations []Violation) Summary {
	s := Summary{}
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		s.Total++
		switch v.Severity {
		case SeverityWarn:
			s.Warn++
		case SeverityError:
			s.Error++
		case SeverityFatal:
			s.Fatal++
		}
		ids = append(ids, v.ID)
	}
	s.ViolationIDs = sortedUnique(ids)
	return s
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
