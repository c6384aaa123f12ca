// Package orchestrator drives one pipeline Execution per admitted
// webhook: it owns the state machine, issues invariant checks at the
// gating decision, just before the LLM call and just before posting a
// comment (other transitions are not checked), calls out to the
// pre-check gate and LLM collaborator,
// evaluates postconditions at the terminal state, and guarantees
// exactly one decision record per admitted webhook with the pipeline
// permit released on every exit path.
//
// Grounded on the teacher's sequential-stage session executor
// (`pkg/queue/executor.go`'s `RealSessionExecutor`, which drives one
// alert investigation through a fixed sequence of stages with a
// deferred cleanup), generalized here into a state-machine-driven
// pipeline with named divergences rather than a single linear stage
// list.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sealedreview/reviewpipeline/pkg/attestation"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/idempotency"
	"github.com/sealedreview/reviewpipeline/pkg/invariant"
	"github.com/sealedreview/reviewpipeline/pkg/merkleindex"
	"github.com/sealedreview/reviewpipeline/pkg/metrics"
	"github.com/sealedreview/reviewpipeline/pkg/permit"
	"github.com/sealedreview/reviewpipeline/pkg/precheck"
	"github.com/sealedreview/reviewpipeline/pkg/review"
	"github.com/sealedreview/reviewpipeline/pkg/webhook"
)

// Decision path names, shared with pkg/postcondition's
// PATH_FINAL_STATE_CONSISTENT table — these exact strings are the
// contract between the two packages.
const (
	PathDuplicate           = "duplicate"
	PathLoadShed            = "load_shed"
	PathSilentExitSafe      = "silent_exit_safe"
	PathSilentExitFiltered  = "silent_exit_filtered"
	PathManualReviewWarning = "manual_review_warning"
	PathAIReview            = "ai_review"
	PathAIFallbackQuality   = "ai_fallback_quality"
	PathAIFallbackError     = "ai_fallback_error"
	PathErrorAborted        = "error_aborted"
)

// DiffExtractor fetches the changed files for a PR; its transport and
// the repository-hosting API client are out of scope (spec.md §1).
type DiffExtractor interface {
	ExtractDiff(ctx context.Context, ec webhook.EventContext) ([]precheck.DiffFile, error)
}

// Filter narrows a diff down to files the pre-check classifier should
// actually look at (e.g. dropping generated files, lockfiles, vendored
// code); a filter that drops every file routes the execution to
// FILTERED_OUT.
type Filter interface {
	FilterFiles(files []precheck.DiffFile) []precheck.DiffFile
}

// CommentPublisher posts the rendered review (or an explanatory
// warning) back to the PR; Markdown formatting and the hosting API
// client are out of scope (spec.md §1) — this package only needs to
// know whether the post succeeded.
type CommentPublisher interface {
	PublishComment(ctx context.Context, ec webhook.EventContext, body string) error
}

// Contract identity fields the orchestrator stamps onto every decision
// record; supplied at construction from the active contract computed
// at boot (pkg/contract).
type ContractIdentity struct {
	Version string
	Hash    string
}

// Singletons bundles every process-wide shared dependency the
// orchestrator needs, mirroring spec.md §3's "Ownership & lifecycle"
// note that these are initialized once at startup and shared across
// executions.
type Singletons struct {
	Contract          ContractIdentity
	IdempotencyGuard  idempotency.Guard
	PipelinePermit    permit.Semaphore
	LLMPermit         permit.Semaphore
	Faults            *fault.Controller
	History           decision.History
	Ledger            *attestation.Ledger
	MerkleIndex       *merkleindex.Index
	Metrics           *metrics.Registry
	InstanceMode      string // "single-instance" | "distributed" | "degraded"
	SharedStoreEnabled bool
	SharedStoreHealthy bool

	// GateHighCountOverride replaces precheck.DefaultHighCountThreshold
	// when positive; zero means "use the compiled-in default" (see
	// pkg/config's gate_thresholds section).
	GateHighCountOverride int
}

// Orchestrator drives executions. It holds only process-wide
// singletons and per-call collaborators — no per-execution mutable
// state, so a single Orchestrator value safely serves concurrent
// webhooks up to the pipeline permit bound.
type Orchestrator struct {
	singletons  Singletons
	diff        DiffExtractor
	filter      Filter
	classifier  precheck.Classifier
	collaborator *review.Collaborator
	publisher   CommentPublisher
	logger      *slog.Logger
}

// New builds an Orchestrator from its singletons and per-call
// collaborators.
func New(s Singletons, diff DiffExtractor, filter Filter, classifier precheck.Classifier, collaborator *review.Collaborator, publisher CommentPublisher) *Orchestrator {
	return &Orchestrator{
		singletons:   s,
		diff:         diff,
		filter:       filter,
		classifier:   classifier,
		collaborator: collaborator,
		publisher:    publisher,
		logger:       slog.Default().With("component", "orchestrator"),
	}
}

// Outcome is what HandleWebhook returns to the HTTP layer: just enough
// to build the 202 response spec.md §6 specifies. The full decision
// record (if one was emitted) is in history by the time this returns,
// unless an injected DECISION_WRITE_FAILURE fault skipped the append.
type Outcome struct {
	ReviewID       string
	IdempotencyKey string
	Admitted       bool
	Duplicate      bool
	LoadShed       bool
}

// HandleWebhook is the single entry point: admit, dedupe, gate on the
// pipeline permit, then run the full execution. It never panics past
// its own boundary and never returns an error — spec.md §4.11's
// termination contract is "caught and recorded, not propagated".
func (o *Orchestrator) HandleWebhook(ctx context.Context, env webhook.Envelope) Outcome {
	if !env.Admitted() {
		return Outcome{Admitted: false}
	}

	key := webhook.IdempotencyKey(env)
	reviewID := newReviewID()

	result, err := o.singletons.IdempotencyGuard.CheckAndMark(ctx, key)
	if err != nil {
		o.logger.Warn("idempotency guard error, treating as new", "error", err)
	}
	if result.Status == idempotency.StatusDuplicateRecent {
		o.singletons.Metrics.IncrDuplicate()
		o.singletons.Metrics.IncrDecisionPath(PathDuplicate)
		return Outcome{ReviewID: reviewID, IdempotencyKey: key, Admitted: true, Duplicate: true}
	}

	if !o.singletons.PipelinePermit.TryAcquire(ctx) {
		o.singletons.Metrics.IncrLoadShed()
		o.singletons.Metrics.IncrDecisionPath(PathLoadShed)
		return Outcome{ReviewID: reviewID, IdempotencyKey: key, Admitted: true, LoadShed: true}
	}
	defer o.singletons.PipelinePermit.Release(ctx)

	ec := webhook.NewEventContext(env)
	o.run(ctx, reviewID, ec)

	return Outcome{ReviewID: reviewID, IdempotencyKey: key, Admitted: true}
}

func newReviewID() string {
	return uuid.NewString()
}
