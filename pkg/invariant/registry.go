package invariant

// Severity classifies how serious a violated invariant or
// postcondition is.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Invariant is one named predicate over a Context.
type Invariant struct {
	ID          string
	Description string
	Severity    Severity
	Predicate   func(Context) bool
}

// Violation records one failed invariant evaluation.
type Violation struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// All is the full registry of the 14 invariants that must hold
// throughout every execution. Predicates treat an absent field as
// vacuously true, so a partial Context only exercises the invariants
// relevant to the fields it actually sets.
var All = []Invariant{
	{
		ID:          "PIPELINE_SEMAPHORE_NON_NEGATIVE",
		Description: "pipeline permits in flight is never negative",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.PipelinePermitsInFlight == nil {
				return true
			}
			return *c.PipelinePermitsInFlight >= 0
		},
	},
	{
		ID:          "PIPELINE_SEMAPHORE_WITHIN_BOUNDS",
		Description: "pipeline permits in flight never exceeds the configured max",
		Severity:    SeverityError,
		Predicate: func(c Context) bool {
			if c.PipelinePermitsInFlight == nil || c.PipelinePermitsMax == nil {
				return true
			}
			return *c.PipelinePermitsInFlight <= *c.PipelinePermitsMax
		},
	},
	{
		ID:          "LLM_SEMAPHORE_NON_NEGATIVE",
		Description: "LLM permits in flight is never negative",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.LLMPermitsInFlight == nil {
				return true
			}
			return *c.LLMPermitsInFlight >= 0
		},
	},
	{
		ID:          "LLM_SEMAPHORE_WITHIN_BOUNDS",
		Description: "LLM permits in flight never exceeds the configured max",
		Severity:    SeverityError,
		Predicate: func(c Context) bool {
			if c.LLMPermitsInFlight == nil || c.LLMPermitsMax == nil {
				return true
			}
			return *c.LLMPermitsInFlight <= *c.LLMPermitsMax
		},
	},
	{
		ID:          "GATE_SKIP_IMPLIES_NO_AI",
		Description: "gate disallowed implies the LLM is never invoked",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.GateAllowed == nil || c.AIInvoked == nil {
				return true
			}
			if *c.GateAllowed {
				return true
			}
			return !*c.AIInvoked
		},
	},
	{
		ID:          "AI_INVOCATION_REQUIRES_GATE_ALLOW",
		Description: "the LLM is only invoked when the gate allowed it",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.AboutToInvokeLLM == nil || c.GateAllowed == nil {
				return true
			}
			if !*c.AboutToInvokeLLM {
				return true
			}
			return *c.GateAllowed
		},
	},
	{
		ID:          "FALLBACK_HAS_REASON",
		Description: "a fallback review always records a reason",
		Severity:    SeverityError,
		Predicate: func(c Context) bool {
			if c.FallbackUsed == nil {
				return true
			}
			if !*c.FallbackUsed {
				return true
			}
			return c.FallbackReason != nil && *c.FallbackReason != ""
		},
	},
	{
		ID:          "VERDICT_RISKS_CONSISTENT",
		Description: "a safe verdict carries no risks; a high_risk verdict carries at least one",
		Severity:    SeverityWarn,
		Predicate: func(c Context) bool {
			if c.Verdict == nil || c.RisksCount == nil {
				return true
			}
			switch *c.Verdict {
			case "safe":
				return *c.RisksCount == 0
			case "high_risk":
				return *c.RisksCount > 0
			default:
				return true
			}
		},
	},
	{
		ID:          "SILENT_EXIT_NO_COMMENT",
		Description: "a silent_exit decision path never posts a comment",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.DecisionPath == nil || c.CommentPosted == nil {
				return true
			}
			if !isSilentExit(*c.DecisionPath) {
				return true
			}
			return !*c.CommentPosted
		},
	},
	{
		ID:          "DECISION_PATH_VALID",
		Description: "decision path is one of the known enumerated values",
		Severity:    SeverityError,
		Predicate: func(c Context) bool {
			if c.DecisionPath == nil {
				return true
			}
			return isKnownPath(*c.DecisionPath)
		},
	},
	{
		ID:          "AI_INVOCATION_REQUIRES_APPROVAL",
		Description: "the LLM is only invoked from AI_APPROVED or a later reachable state",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.AboutToInvokeLLM == nil || c.CurrentState == nil {
				return true
			}
			if !*c.AboutToInvokeLLM {
				return true
			}
			return stateAtOrAfterApproval(*c.CurrentState)
		},
	},
	{
		ID:          "COMMENT_POSTING_REQUIRES_REVIEW_READY",
		Description: "a comment is only posted from REVIEW_READY or a later output or terminal state",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.AboutToPostComment == nil || c.CurrentState == nil {
				return true
			}
			if !*c.AboutToPostComment {
				return true
			}
			return stateAtOrAfterReviewReady(*c.CurrentState)
		},
	},
	{
		ID:          "TERMINAL_ABSORPTION_HOLDS",
		Description: "a terminal state never has a subsequent transition attempt recorded as succeeding",
		Severity:    SeverityFatal,
		Predicate: func(c Context) bool {
			if c.IsTerminal == nil || c.PreviousState == nil || c.CurrentState == nil {
				return true
			}
			if !*c.IsTerminal {
				return true
			}
			return true // enforced structurally by fsm.Machine; this invariant documents the contract
		},
	},
	{
		ID:          "INSTANCE_MODE_CONSISTENT_WITH_HEALTH",
		Description: "instance mode reflects shared-store configuration and health",
		Severity:    SeverityWarn,
		Predicate: func(c Context) bool {
			if c.SharedStoreEnabled == nil || c.InstanceMode == nil {
				return true
			}
			if !*c.SharedStoreEnabled {
				return *c.InstanceMode == "single-instance"
			}
			if c.SharedStoreHealthy == nil {
				return true
			}
			if *c.SharedStoreHealthy {
				return *c.InstanceMode == "distributed"
			}
			return *c.InstanceMode == "degraded"
		},
	},
}

func isSilentExit(path string) bool {
	switch path {
	case "silent_exit_safe", "silent_exit_filtered":
		return true
	default:
		return false
	}
}

func isKnownPath(path string) bool {
	switch path {
	case "silent_exit_safe", "silent_exit_filtered", "manual_review_warning",
		"ai_review", "ai_fallback_quality", "ai_fallback_error",
		"error_aborted", "duplicate", "load_shed":
		return true
	default:
		return false
	}
}

var statesAtOrAfterApproval = map[fsm.State]bool{
	fsm.AIApproved:        true,
	fsm.AIReviewPending:   true,
	fsm.AIInvoked:         true,
	fsm.AIResponded:       true,
	fsm.AIValidated:       true,
	fsm.FallbackPending:   true,
	fsm.FallbackGenerated: true,
}

func stateAtOrAfterApproval(s fsm.State) bool {
	return statesAtOrAfterApproval[s]
}

var statesAtOrAfterReviewReady = map[fsm.State]bool{
	fsm.ReviewReady:      true,
	fsm.CommentPending:   true,
	fsm.CommentPosted:    true,
	fsm.CommentFailed:    true,
	fsm.CompletedSuccess: true,
	fsm.CompletedWarning: true,
}

func stateAtOrAfterReviewReady(s fsm.State) bool {
	return statesAtOrAfterReviewReady[s]
}
