package review

import (
	"context"
	"fmt"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/permit"
	"github.com/sealedreview/reviewpipeline/pkg/precheck"
)

const (
	generateTemperature = 0.0
	generateMaxTokens   = 2048
	generateTimeout     = 30 * time.Second
)

// Collaborator drives the full generate_review contract: build a
// prompt, acquire the LLM permit, call the client with one retry and
// a hard timeout, validate and quality-gate the reply, and fall back
// deterministically on any failure — releasing the permit on every
// exit path.
type Collaborator struct {
	client    Client
	llmPermit permit.Semaphore
	faults    *fault.Controller
}

// NewCollaborator wires a Client, the LLM-call semaphore, and the
// fault controller together.
func NewCollaborator(client Client, llmPermit permit.Semaphore, faults *fault.Controller) *Collaborator {
	return &Collaborator{client: client, llmPermit: llmPermit, faults: faults}
}

// BuildPrompt assembles the system+user prompt from a pre-check
// bundle; comment formatting and markdown rendering are out of scope,
// this only needs to describe what the LLM is being asked to judge.
func BuildPrompt(diffSummary string, bundle precheck.Bundle) Prompt {
	return Prompt{
		System: "You are a precise, skeptical code reviewer. Respond with a single JSON object with exactly these fields: assessment, risks, assumptions, tradeoffs, failure_modes, recommendations, verdict.",
		User:   fmt.Sprintf("Diff summary:\n%s\n\nPre-check signals: high=%d medium=%d low=%d critical_categories=%v", diffSummary, bundle.HighCount, bundle.MediumCount, bundle.LowCount, bundle.CriticalCategories),
	}
}

// GenerateReview runs the full contract. ctx governs the overall call
// budget; the 30s hard timeout is applied internally regardless of a
// longer caller-supplied deadline.
func (c *Collaborator) GenerateReview(ctx context.Context, diffSummary string, bundle precheck.Bundle) Result {
	if !c.llmPermit.TryAcquire(ctx) {
		return DeterministicFallback(bundle, FallbackReason{Trigger: "api_error", Details: "LLM permit refused"})
	}
	defer c.llmPermit.Release(ctx)

	req := Request{Prompt: BuildPrompt(diffSummary, bundle), Temperature: generateTemperature, MaxTokens: generateMaxTokens}

	raw, err := c.callWithRetry(ctx, req)
	if err != nil {
		return DeterministicFallback(bundle, FallbackReason{Trigger: "api_error", Details: err.Error()})
	}

	out, err := ParseAndValidate(raw)
	if err != nil {
		return DeterministicFallback(bundle, FallbackReason{Trigger: "validation_error", Details: err.Error()})
	}

	if reason := QualityReject(out); reason != "" {
		return DeterministicFallback(bundle, FallbackReason{Trigger: "quality_rejection", Details: reason})
	}

	return Result{Output: out, FallbackUsed: false}
}

// callWithRetry calls the client once, retries exactly once on
// failure, and enforces the 30s hard timeout around each attempt.
// LLM_TIMEOUT and LLM_MALFORMED_RESPONSE may be raised by the fault
// controller before either attempt, matching spec.md §4.10's stated
// injection points.
func (c *Collaborator) callWithRetry(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if c.faults != nil {
			if err := c.faults.MaybeInject(fault.LLMTimeout); err != nil {
				lastErr = err
				continue
			}
			if err := c.faults.MaybeInject(fault.LLMMalformedResponse); err != nil {
				return "{malformed", nil // intentionally invalid JSON, exercises the validation-error fallback path
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		raw, err := c.client.Generate(callCtx, req)
		cancel()
		if err == nil {
			return raw, nil
		}
		lastErr = err
	}
	return "", lastErr
}
