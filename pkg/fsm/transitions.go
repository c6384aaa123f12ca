package fsm

// allowed is the static, total transition table: every state declares
// its legal successors, terminal states declare none. Every non-terminal
// state additionally allows ABORTED_FATAL, covering "uncaught error in
// any non-terminal state" (spec: orchestrator divergences).
var allowed = map[State][]State{
	Received:              {DiffExtractionPending},
	DiffExtractionPending: {DiffExtracted, AbortedError},
	DiffExtracted:         {FilteringPending},
	FilteringPending:      {Filtered, FilteredOut},
	Filtered:              {PrecheckPending},
	FilteredOut:           {CompletedSilent},
	PrecheckPending:       {Prechecked},
	Prechecked:            {AIGatingPending},
	AIGatingPending:       {AIApproved, AIBlockedSafe, AIBlockedManual},
	AIApproved:            {AIReviewPending},
	AIBlockedSafe:         {CompletedSilent},
	AIBlockedManual:       {ReviewReady},
	AIReviewPending:       {AIInvoked},
	AIInvoked:             {AIResponded, FallbackPending},
	AIResponded:           {AIValidated, FallbackPending},
	AIValidated:           {ReviewReady},
	FallbackPending:       {FallbackGenerated},
	FallbackGenerated:     {ReviewReady},
	ReviewReady:           {CommentPending},
	CommentPending:        {CommentPosted, CommentFailed},
	CommentFailed:         {CompletedWarning},
	CommentPosted:         {CompletedSuccess, CompletedWarning},

	CompletedSuccess: {},
	CompletedSilent:  {},
	CompletedWarning: {},
	AbortedError:     {},
	AbortedFatal:     {},
}

func init() {
	for s, succs := range allowed {
		if IsTerminal(s) {
			continue
		}
		hasFatal := false
		for _, t := range succs {
			if t == AbortedFatal {
				hasFatal = true
				break
			}
		}
		if !hasFatal {
			allowed[s] = append(succs, AbortedFatal)
		}
	}
}

// CanTransition reports whether a transition from -> to is legal per
// the static table. Terminal states never permit a transition.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Successors returns the declared legal successors of s.
func Successors(s State) []State {
	out := make([]State, len(allowed[s]))
	copy(out, allowed[s])
	return out
}
