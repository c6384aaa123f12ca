package review

import (
	"context"
	"errors"
	"testing"

	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/permit"
	"github.com/sealedreview/reviewpipeline/pkg/precheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndValidate_ValidReply(t *testing.T) {
	raw := `{"assessment":"this change touches authentication and needs a closer look","risks":["auth bypass"],"assumptions":[],"tradeoffs":[],"failure_modes":[],"recommendations":["add tests"],"verdict":"requires_changes"}`
	out, err := ParseAndValidate(raw)
	require.NoError(t, err)
	assert.Equal(t, VerdictRequiresChanges, out.Verdict)
}

func TestParseAndValidate_MissingFieldFails(t *testing.T) {
	raw := `{"assessment":"x","risks":[],"assumptions":[],"tradeoffs":[],"failure_modes":[],"verdict":"safe"}`
	_, err := ParseAndValidate(raw)
	require.Error(t, err)
}

func TestParseAndValidate_UnknownVerdictFails(t *testing.T) {
	raw := `{"assessment":"x","risks":[],"assumptions":[],"tradeoffs":[],"failure_modes":[],"recommendations":[],"verdict":"maybe"}`
	_, err := ParseAndValidate(raw)
	require.Error(t, err)
}

func TestParseAndValidate_InvalidJSON(t *testing.T) {
	_, err := ParseAndValidate("{not json")
	require.Error(t, err)
}

func TestQualityReject_BoilerplatePhrase(t *testing.T) {
	out := Output{Assessment: "Looks good to me, nothing to flag here at all", Verdict: VerdictSafe}
	assert.NotEmpty(t, QualityReject(out))
}

func TestQualityReject_TooShort(t *testing.T) {
	out := Output{Assessment: "fine", Verdict: VerdictSafe}
	assert.NotEmpty(t, QualityReject(out))
}

func TestQualityReject_SafeWithRisks(t *testing.T) {
	out := Output{Assessment: "A reasonably detailed assessment of the change", Risks: []string{"x"}, Verdict: VerdictSafe}
	assert.NotEmpty(t, QualityReject(out))
}

func TestQualityReject_HighRiskWithoutRisks(t *testing.T) {
	out := Output{Assessment: "A reasonably detailed assessment of the change", Recommendations: []string{"x"}, Verdict: VerdictHighRisk}
	assert.NotEmpty(t, QualityReject(out))
}

func TestQualityReject_PassesGoodReply(t *testing.T) {
	out := Output{
		Assessment:      "This change modifies the authentication middleware in a way that could affect session handling",
		Risks:           []string{"session fixation"},
		Recommendations: []string{"add regression test"},
		Verdict:         VerdictRequiresChanges,
	}
	assert.Empty(t, QualityReject(out))
}

func TestDeterministicFallback_VerdictByHighCount(t *testing.T) {
	reason := FallbackReason{Trigger: "api_error", Details: "timeout"}

	r := DeterministicFallback(precheck.Bundle{HighCount: 3}, reason)
	assert.Equal(t, VerdictHighRisk, r.Output.Verdict)

	r = DeterministicFallback(precheck.Bundle{HighCount: 1}, reason)
	assert.Equal(t, VerdictRequiresChanges, r.Output.Verdict)

	r = DeterministicFallback(precheck.Bundle{HighCount: 0}, reason)
	assert.Equal(t, VerdictSafeWithConditions, r.Output.Verdict)

	assert.True(t, r.FallbackUsed)
	assert.Equal(t, []string{"manual review required"}, r.Output.Recommendations)
}

type fakeClient struct {
	raw string
	err error
}

func (f *fakeClient) Generate(context.Context, Request) (string, error) { return f.raw, f.err }

func TestCollaborator_FallsBackOnClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	sem := permit.NewLocalSemaphore(1)
	c := NewCollaborator(client, sem, nil)

	result := c.GenerateReview(context.Background(), "diff", precheck.Bundle{HighCount: 1})
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, "api_error", result.FallbackReason.Trigger)
	assert.Equal(t, 0, sem.InFlight(), "permit must be released")
}

func TestCollaborator_FallsBackWhenPermitRefused(t *testing.T) {
	client := &fakeClient{raw: `{}`}
	sem := permit.NewLocalSemaphore(1)
	require.True(t, sem.TryAcquire(context.Background()))
	c := NewCollaborator(client, sem, nil)

	result := c.GenerateReview(context.Background(), "diff", precheck.Bundle{})
	assert.True(t, result.FallbackUsed)
}

func TestCollaborator_SucceedsWithValidReply(t *testing.T) {
	raw := `{"assessment":"This touches the payment processing path and should be reviewed carefully","risks":["race condition"],"assumptions":[],"tradeoffs":[],"failure_modes":[],"recommendations":["add lock"],"verdict":"requires_changes"}`
	client := &fakeClient{raw: raw}
	sem := permit.NewLocalSemaphore(1)
	c := NewCollaborator(client, sem, nil)

	result := c.GenerateReview(context.Background(), "diff", precheck.Bundle{HighCount: 2})
	assert.False(t, result.FallbackUsed)
	assert.Equal(t, VerdictRequiresChanges, result.Output.Verdict)
}

func TestCollaborator_FaultInjectedTimeoutTriggersFallback(t *testing.T) {
	client := &fakeClient{raw: `{}`}
	sem := permit.NewLocalSemaphore(1)
	faults := fault.NewController(true, map[fault.Code]fault.Trigger{fault.LLMTimeout: {Kind: fault.TriggerAlways}}, 1)
	c := NewCollaborator(client, sem, faults)

	result := c.GenerateReview(context.Background(), "diff", precheck.Bundle{})
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 0, sem.InFlight())
}
