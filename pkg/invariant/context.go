// Package invariant implements the named invariant registry and
// checker: predicates over a context snapshot that must hold
// throughout an execution, classified by severity, with a
// non-throwing "safe" check mode and a throws-on-fatal enforce mode.
//
// Grounded on the teacher's input-validation idiom in `pkg/services`
// (field-by-field checks returning a `ValidationError`), generalized
// into a registry of independently named, severity-classified
// predicates over a single optional-field context bag rather than
// one monolithic validation function — because invariants here are
// evaluated repeatedly across an execution's lifetime against
// partial snapshots, not once against a complete input.
package invariant

import "github.com/sealedreview/reviewpipeline/pkg/fsm"

// Context is the dynamic context bag invariants and postconditions
// read from. Every field is optional; a predicate reading an absent
// field must treat it as satisfied (vacuous truth), so partial
// contexts can validate targeted subsets without tripping unrelated
// invariants.
type Context struct {
	PipelinePermitsInFlight  *int
	PipelinePermitsMax       *int
	LLMPermitsInFlight       *int
	LLMPermitsMax            *int
	GateAllowed              *bool
	AIInvoked                *bool
	FallbackUsed             *bool
	FallbackReason           *string
	Verdict                  *string
	RisksCount               *int
	DecisionPath             *string
	CommentPosted            *bool
	SharedStoreEnabled       *bool
	SharedStoreHealthy       *bool
	InstanceMode             *string
	CurrentState             *fsm.State
	PreviousState            *fsm.State
	IsTerminal               *bool
	AboutToInvokeLLM         *bool
	AboutToPostComment       *bool
}
