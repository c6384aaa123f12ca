package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	m := New()
	path := []State{
		DiffExtractionPending, DiffExtracted, FilteringPending, Filtered,
		PrecheckPending, Prechecked, AIGatingPending, AIApproved,
		AIReviewPending, AIInvoked, AIResponded, AIValidated,
		ReviewReady, CommentPending, CommentPosted, CompletedSuccess,
	}
	for _, s := range path {
		require.NoError(t, m.Transition(s, ""))
	}
	assert.Equal(t, CompletedSuccess, m.Current())
	assert.True(t, m.IsTerminal())
	final, ok := m.FinalStateOrNone()
	assert.True(t, ok)
	assert.Equal(t, CompletedSuccess, final)
	assert.Len(t, m.History(), len(path))
}

func TestMachine_TerminalAbsorption(t *testing.T) {
	m := New()
	require.NoError(t, m.Transition(DiffExtractionPending, ""))
	require.NoError(t, m.Transition(AbortedError, ""))

	err := m.Transition(CompletedSuccess, "")
	require.Error(t, err)
	var violation *TerminalStateViolation
	assert.ErrorAs(t, err, &violation)
}

func TestMachine_IllegalTransition(t *testing.T) {
	m := New()
	err := m.Transition(CompletedSuccess, "")
	require.Error(t, err)
	var illegal *IllegalTransition
	assert.ErrorAs(t, err, &illegal)
}

func TestMachine_SafeTransition(t *testing.T) {
	m := New()
	assert.True(t, m.SafeTransition(DiffExtractionPending, ""))
	assert.False(t, m.SafeTransition(CompletedSuccess, "illegal"))
	assert.Equal(t, DiffExtractionPending, m.Current())
}

func TestMachine_AbortedFatalReachableFromAnyNonTerminal(t *testing.T) {
	for s, band := range bandOf {
		if band == BandTerminal {
			continue
		}
		assert.True(t, CanTransition(s, AbortedFatal), "expected %s to allow ABORTED_FATAL", s)
	}
}

func TestMachine_ManualWarningPath(t *testing.T) {
	m := New()
	steps := []State{
		DiffExtractionPending, DiffExtracted, FilteringPending, Filtered,
		PrecheckPending, Prechecked, AIGatingPending, AIBlockedManual,
		ReviewReady, CommentPending, CommentPosted, CompletedWarning,
	}
	for _, s := range steps {
		require.NoError(t, m.Transition(s, ""))
	}
	assert.Equal(t, CompletedWarning, m.Current())
	assert.True(t, m.VisitedStates()[ReviewReady])
}

func TestAllStates_TerminalStatesHaveNoSuccessors(t *testing.T) {
	for _, s := range TerminalStates() {
		assert.Empty(t, Successors(s))
	}
}
