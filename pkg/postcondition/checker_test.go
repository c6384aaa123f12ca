package postcondition

import (
	"testing"

	"github.com/sealedreview/reviewpipeline/pkg/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verdict(s string) *string { return &s }

func TestEvaluate_HappyPathPasses(t *testing.T) {
	ctx := TerminalContext{
		FinalState:       fsm.CompletedSuccess,
		IsTerminal:       true,
		DecisionPath:     "ai_review",
		CommentPosted:    true,
		Verdict:          verdict("requires_changes"),
		AIInvoked:        true,
		StateTransitions: 16,
		VisitedStates:    map[fsm.State]bool{fsm.ReviewReady: true, fsm.AIApproved: true},
		RisksCount:       2,
	}
	report := Evaluate(ctx)
	assert.True(t, report.Passed, "expected no violations, got %v", report.ViolationIDs)
	assert.False(t, report.FatalOrErrorAny)
}

func TestEvaluate_SuccessWithoutCommentFails(t *testing.T) {
	ctx := TerminalContext{
		FinalState:       fsm.CompletedSuccess,
		IsTerminal:       true,
		DecisionPath:     "ai_review",
		CommentPosted:    false,
		Verdict:          verdict("safe"),
		StateTransitions: 16,
		VisitedStates:    map[fsm.State]bool{},
	}
	violations := Check(ctx)
	ids := make([]string, 0)
	for _, v := range violations {
		ids = append(ids, v.ID)
	}
	assert.Contains(t, ids, "SUCCESS_REQUIRES_COMMENT")
}

func TestEvaluate_SilentExitWithLLMFails(t *testing.T) {
	ctx := TerminalContext{
		FinalState:       fsm.CompletedSilent,
		IsTerminal:       true,
		DecisionPath:     "silent_exit_safe",
		AIInvoked:        true,
		StateTransitions: 4,
		VisitedStates:    map[fsm.State]bool{},
	}
	violations := Check(ctx)
	found := false
	for _, v := range violations {
		if v.ID == "SILENT_EXIT_NO_LLM" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluate_EmptyHistoryFails(t *testing.T) {
	ctx := TerminalContext{FinalState: fsm.CompletedSilent, IsTerminal: true, StateTransitions: 0}
	violations := Check(ctx)
	found := false
	for _, v := range violations {
		if v.ID == "NON_EMPTY_TRANSITION_HISTORY" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAll_Has14Postconditions(t *testing.T) {
	require.Len(t, All, 14)
}
