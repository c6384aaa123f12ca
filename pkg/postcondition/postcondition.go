// Package postcondition implements the 14 terminal-state contracts
// evaluated exactly once per execution, at its terminal state. Same
// severity-classified shape as package invariant, but over a
// TerminalContext describing the whole finished run rather than a
// point-in-time snapshot.
//
// Grounded the same way as pkg/invariant (teacher's field-by-field
// validation idiom in pkg/services, generalized into a named-predicate
// registry).
package postcondition

import "github.com/sealedreview/reviewpipeline/pkg/fsm"

// Severity mirrors invariant.Severity; kept as its own type so this
// package has no import-time coupling to pkg/invariant beyond the
// shared fsm.State type both operate on.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// TerminalContext is the complete picture of one finished execution.
type TerminalContext struct {
	FinalState        fsm.State
	IsTerminal         bool
	DecisionPath       string
	CommentPosted      bool
	Verdict            *string
	AIInvoked          bool
	AIBlocked          bool
	FallbackUsed       bool
	FallbackReason     string
	StateTransitions   int
	VisitedStates      map[fsm.State]bool
	RisksCount         int
}

// Postcondition is one named terminal-state contract.
type Postcondition struct {
	ID          string
	Description string
	Severity    Severity
	Predicate   func(TerminalContext) bool
}

// Violation records one failed postcondition.
type Violation struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// All is the registry of the 14 postconditions.
var All = []Postcondition{
	{
		ID:          "SUCCESS_REQUIRES_COMMENT",
		Description: "COMPLETED_SUCCESS implies a comment was posted",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.FinalState != fsm.CompletedSuccess {
				return true
			}
			return c.CommentPosted
		},
	},
	{
		ID:          "SUCCESS_REQUIRES_VERDICT",
		Description: "COMPLETED_SUCCESS implies a verdict was recorded",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.FinalState != fsm.CompletedSuccess {
				return true
			}
			return c.Verdict != nil && *c.Verdict != ""
		},
	},
	{
		ID:          "SILENT_EXIT_NO_COMMENT",
		Description: "COMPLETED_SILENT implies no comment was posted",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.FinalState != fsm.CompletedSilent {
				return true
			}
			return !c.CommentPosted
		},
	},
	{
		ID:          "SILENT_EXIT_NO_LLM",
		Description: "COMPLETED_SILENT implies the LLM was never invoked",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.FinalState != fsm.CompletedSilent {
				return true
			}
			return !c.AIInvoked
		},
	},
	{
		ID:          "MANUAL_WARNING_HAS_COMMENT",
		Description: "manual_review_warning path implies a comment was posted",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.DecisionPath != "manual_review_warning" {
				return true
			}
			return c.CommentPosted
		},
	},
	{
		ID:          "FALLBACK_REQUIRES_REASON",
		Description: "fallback_used implies a non-empty fallback reason",
		Severity:    SeverityError,
		Predicate: func(c TerminalContext) bool {
			if !c.FallbackUsed {
				return true
			}
			return c.FallbackReason != ""
		},
	},
	{
		ID:          "ERROR_PATHS_NOT_SUCCESS",
		Description: "ABORTED_ERROR and ABORTED_FATAL never resolve to COMPLETED_SUCCESS",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if c.FinalState != fsm.AbortedError && c.FinalState != fsm.AbortedFatal {
				return true
			}
			return c.FinalState != fsm.CompletedSuccess
		},
	},
	{
		ID:          "TERMINAL_STATE_REACHED",
		Description: "the execution ends in a declared terminal state",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			return c.IsTerminal && fsm.IsTerminal(c.FinalState)
		},
	},
	{
		ID:          "COMMENT_REQUIRES_REVIEW_READY_VISITED",
		Description: "a posted comment implies REVIEW_READY was visited",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if !c.CommentPosted {
				return true
			}
			return c.VisitedStates[fsm.ReviewReady]
		},
	},
	{
		ID:          "AI_INVOCATION_REQUIRES_APPROVAL_VISITED",
		Description: "any LLM invocation implies AI_APPROVED was visited",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if !c.AIInvoked {
				return true
			}
			return c.VisitedStates[fsm.AIApproved]
		},
	},
	{
		ID:          "NON_EMPTY_TRANSITION_HISTORY",
		Description: "every execution records at least one transition",
		Severity:    SeverityError,
		Predicate: func(c TerminalContext) bool {
			return c.StateTransitions > 0
		},
	},
	{
		ID:          "PATH_FINAL_STATE_CONSISTENT",
		Description: "decision path and final state agree",
		Severity:    SeverityError,
		Predicate: func(c TerminalContext) bool {
			expected, ok := pathFinalStates[c.DecisionPath]
			if !ok {
				return true
			}
			return expected[c.FinalState]
		},
	},
	{
		ID:          "AI_BLOCKED_IMPLIES_NO_INVOCATION",
		Description: "a gate-blocked execution never invokes the LLM",
		Severity:    SeverityFatal,
		Predicate: func(c TerminalContext) bool {
			if !c.AIBlocked {
				return true
			}
			return !c.AIInvoked
		},
	},
	{
		ID:          "RISKS_NON_NEGATIVE",
		Description: "the risk count recorded on the decision is never negative",
		Severity:    SeverityError,
		Predicate: func(c TerminalContext) bool {
			return c.RisksCount >= 0
		},
	},
}

var pathFinalStates = map[string]map[fsm.State]bool{
	"silent_exit_safe":      {fsm.CompletedSilent: true},
	"silent_exit_filtered":  {fsm.CompletedSilent: true},
	"manual_review_warning": {fsm.CompletedWarning: true},
	"ai_review":             {fsm.CompletedSuccess: true},
	"ai_fallback_quality":   {fsm.CompletedSuccess: true, fsm.CompletedWarning: true},
	"ai_fallback_error":     {fsm.CompletedSuccess: true, fsm.CompletedWarning: true},
	"error_aborted":         {fsm.AbortedError: true, fsm.CompletedWarning: true},
}
