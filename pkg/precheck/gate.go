package precheck

// Decision is the gate's deterministic output.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const (
	ReasonSafe                 = "safe"
	ReasonManualReviewRequired = "manual review required"
	ReasonAllow                = "allow"
)

// DefaultHighCountThreshold is the compiled-in manual-review boundary
// (spec.md §4.9: high>5 skips with a manual-review warning). An
// operator may override it via pkg/config's gate_thresholds section.
const DefaultHighCountThreshold = 5

// Gate evaluates the deterministic rule from spec.md §4.9 against a
// risk-signal bundle using the compiled-in threshold.
func Gate(b Bundle) Decision {
	return GateWithThreshold(b, DefaultHighCountThreshold)
}

// GateWithThreshold is Gate with the manual-review high-count boundary
// supplied explicitly, letting an operator-configured override replace
// the compiled-in default without touching the gate rule's shape.
func GateWithThreshold(b Bundle, highThreshold int) Decision {
	if b.HighCount == 0 && b.MediumCount == 0 {
		return Decision{Allowed: false, Reason: ReasonSafe}
	}
	if b.HighCount > highThreshold {
		return Decision{Allowed: false, Reason: ReasonManualReviewRequired}
	}
	return Decision{Allowed: true, Reason: ReasonAllow}
}
