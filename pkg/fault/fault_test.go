package fault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybeInject_DisabledControllerNeverFires(t *testing.T) {
	c := NewController(false, map[Code]Trigger{LLMTimeout: {Kind: TriggerAlways}}, 1)
	assert.NoError(t, c.MaybeInject(LLMTimeout))
}

func TestMaybeInject_AlwaysFires(t *testing.T) {
	c := NewController(true, map[Code]Trigger{PublishCommentFailure: {Kind: TriggerAlways}}, 1)
	err := c.MaybeInject(PublishCommentFailure)
	require.Error(t, err)
	var injection *Injection
	require.ErrorAs(t, err, &injection)
	assert.Equal(t, PublishCommentFailure, injection.Code)
	assert.Equal(t, []Code{PublishCommentFailure}, c.InjectedCodes())
}

func TestMaybeInject_NeverNeverFires(t *testing.T) {
	c := NewController(true, map[Code]Trigger{LLMTimeout: {Kind: TriggerNever}}, 1)
	assert.NoError(t, c.MaybeInject(LLMTimeout))
}

func TestMaybeInject_UnconfiguredCodeNeverFires(t *testing.T) {
	c := NewController(true, map[Code]Trigger{}, 1)
	assert.NoError(t, c.MaybeInject(LLMTimeout))
}

func TestMaybeInject_ProbabilityZeroNeverFires(t *testing.T) {
	c := NewController(true, map[Code]Trigger{LLMTimeout: {Kind: TriggerProb, Probability: 0}}, 42)
	for i := 0; i < 100; i++ {
		assert.NoError(t, c.MaybeInject(LLMTimeout))
	}
}

func TestMaybeInject_ProbabilityOneAlwaysFires(t *testing.T) {
	c := NewController(true, map[Code]Trigger{LLMTimeout: {Kind: TriggerProb, Probability: 1}}, 42)
	for i := 0; i < 20; i++ {
		assert.Error(t, c.MaybeInject(LLMTimeout))
	}
}
