// Package review implements the LLM collaborator: building a prompt
// from a pre-check bundle, invoking an external judgment service under
// an LLM permit, validating and quality-gating its reply, and falling
// back to a deterministic review on any failure.
//
// The external judgment service's wire/transport details are out of
// scope (spec.md §1); this package is grounded on
// `pkg/agent/llm_client.go`'s interface-seam style (`LLMClient`
// interface, typed input/output) rather than its concrete HTTP/gRPC
// implementation, since only the interface shape — not the transport
// — belongs to this system.
package review

import (
	"context"
	"fmt"
)

// Verdict is the review's overall call; unknown values fail validation.
type Verdict string

const (
	VerdictSafe              Verdict = "safe"
	VerdictSafeWithConditions Verdict = "safe_with_conditions"
	VerdictRequiresChanges   Verdict = "requires_changes"
	VerdictHighRisk          Verdict = "high_risk"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictSafe, VerdictSafeWithConditions, VerdictRequiresChanges, VerdictHighRisk:
		return true
	default:
		return false
	}
}

// Output is the review's full shape, whether produced by the LLM or
// by the deterministic fallback.
type Output struct {
	Assessment      string   `json:"assessment"`
	Risks           []string `json:"risks"`
	Assumptions     []string `json:"assumptions"`
	Tradeoffs       []string `json:"tradeoffs"`
	FailureModes    []string `json:"failure_modes"`
	Recommendations []string `json:"recommendations"`
	Verdict         Verdict  `json:"verdict"`
}

// FallbackReason records why a fallback review was produced.
type FallbackReason struct {
	Trigger string `json:"trigger"` // "api_error" | "validation_error" | "quality_rejection"
	Details string `json:"details"`
}

// Result wraps an Output with the fallback bookkeeping the orchestrator
// needs to populate the decision record.
type Result struct {
	Output         Output
	FallbackUsed   bool
	FallbackReason *FallbackReason
}

// Prompt is the system+user prompt pair built from a pre-check bundle.
type Prompt struct {
	System string
	User   string
}

// Request is handed to a Client.Generate call.
type Request struct {
	Prompt      Prompt
	Temperature float64
	MaxTokens   int
}

// Client is the external judgment service's interface seam; its
// concrete implementation (HTTP client, retry policy, auth) is out of
// scope here.
type Client interface {
	Generate(ctx context.Context, req Request) (raw string, err error)
}

func (o Output) String() string {
	return fmt.Sprintf("verdict=%s risks=%d assumptions=%d tradeoffs=%d failure_modes=%d recommendations=%d",
		o.Verdict, len(o.Risks), len(o.Assumptions), len(o.Tradeoffs), len(o.FailureModes), len(o.Recommendations))
}
