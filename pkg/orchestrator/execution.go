package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sealedreview/reviewpipeline/pkg/attestation"
	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/fault"
	"github.com/sealedreview/reviewpipeline/pkg/fsm"
	"github.com/sealedreview/reviewpipeline/pkg/invariant"
	"github.com/sealedreview/reviewpipeline/pkg/postcondition"
	"github.com/sealedreview/reviewpipeline/pkg/precheck"
	"github.com/sealedreview/reviewpipeline/pkg/webhook"
)

// execution is the per-webhook state this package's doc comment
// promises the Orchestrator itself never holds: one value, owned
// exclusively by run, destroyed once finalize returns.
type execution struct {
	o         *Orchestrator
	reviewID  string
	ec        webhook.EventContext
	machine   *fsm.Machine
	startedAt time.Time

	invViolations  []invariant.Violation
	faultsInjected []fault.Code

	decisionPath string
	gateReason   string
	aiInvoked    bool
	aiBlocked    bool
	fallbackUsed bool
	fallbackReasonStr string
	commentPosted bool
	verdict      *string
	risksCount   int
	precheckSum  decision.PrecheckSummary
}

func (o *Orchestrator) run(ctx context.Context, reviewID string, ec webhook.EventContext) {
	ex := &execution{
		o:         o,
		reviewID:  reviewID,
		ec:        ec,
		machine:   fsm.New(),
		startedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			ex.machine.SafeTransition(fsm.AbortedFatal, fmt.Sprintf("panic recovered: %v", r))
			ex.decisionPath = PathErrorAborted
			ex.finalize(ctx)
		}
	}()

	ex.execute(ctx)
	ex.finalize(ctx)
}

func (ex *execution) transition(to fsm.State, reason string) {
	if err := ex.machine.Transition(to, reason); err != nil {
		ex.o.logger.Error("illegal transition attempted, recovering via ABORTED_FATAL", "error", err, "review_id", ex.reviewID)
		ex.machine.SafeTransition(fsm.AbortedFatal, err.Error())
	}
}

func (ex *execution) checkInvariants(c invariant.Context) {
	ex.invViolations = append(ex.invViolations, invariant.SafeCheck(c)...)
}

func (ex *execution) maybeInject(code fault.Code) bool {
	if ex.o.singletons.Faults == nil {
		return false
	}
	if err := ex.o.singletons.Faults.MaybeInject(code); err != nil {
		ex.faultsInjected = append(ex.faultsInjected, code)
		return true
	}
	return false
}

func ptrState(s fsm.State) *fsm.State { return &s }
func ptrBool(b bool) *bool            { return &b }
func ptrString(s string) *string      { return &s }

// execute drives the canonical happy path and its named divergences,
// issuing invariant checks at the transitions spec.md §4.11 calls out.
func (ex *execution) execute(ctx context.Context) {
	ex.transition(fsm.DiffExtractionPending, "admitted")

	files, err := ex.extractDiff(ctx)
	if err != nil {
		ex.transition(fsm.AbortedError, "diff extraction failed: "+err.Error())
		ex.decisionPath = PathErrorAborted
		ex.publishBestEffort(ctx, "Unable to extract the diff for this pull request; the review could not be completed.")
		return
	}
	ex.transition(fsm.DiffExtracted, "diff extracted")

	ex.transition(fsm.FilteringPending, "filtering")
	filtered := files
	if ex.o.filter != nil {
		filtered = ex.o.filter.FilterFiles(files)
	}
	if len(filtered) == 0 {
		ex.transition(fsm.FilteredOut, "all files filtered out")
		ex.transition(fsm.CompletedSilent, "nothing left to review")
		ex.decisionPath = PathSilentExitFiltered
		return
	}
	ex.transition(fsm.Filtered, "files remain after filtering")

	ex.transition(fsm.PrecheckPending, "pre-checking")
	bundle := ex.o.classifier.Classify(filtered)
	gateThreshold := precheck.DefaultHighCountThreshold
	if ex.o.singletons.GateHighCountOverride > 0 {
		gateThreshold = ex.o.singletons.GateHighCountOverride
	}
	if precheck.ExceedsLimits(filtered) {
		// spec.md §9 Open Question (a): a diff breaching either limit is
		// routed to manual review rather than silently truncated.
		forceManualReview(&bundle, gateThreshold)
	}
	ex.transition(fsm.Prechecked, "pre-check complete")
	ex.precheckSum = decision.PrecheckSummary{
		HighCount: bundle.HighCount, MediumCount: bundle.MediumCount, LowCount: bundle.LowCount,
		CriticalCategories: categoriesToStrings(bundle.CriticalCategories),
	}

	ex.transition(fsm.AIGatingPending, "gating")
	gate := precheck.GateWithThreshold(bundle, gateThreshold)
	ex.gateReason = gate.Reason
	ex.checkInvariants(invariant.Context{
		GateAllowed:      ptrBool(gate.Allowed),
		CurrentState:     ptrState(ex.machine.Current()),
		AboutToInvokeLLM: ptrBool(gate.Allowed),
	})

	if !gate.Allowed {
		ex.aiBlocked = true
		if gate.Reason == precheck.ReasonSafe {
			ex.transition(fsm.AIBlockedSafe, gate.Reason)
			ex.transition(fsm.CompletedSilent, "skipped safe")
			ex.decisionPath = PathSilentExitSafe
			return
		}
		ex.transition(fsm.AIBlockedManual, gate.Reason)
		ex.transition(fsm.ReviewReady, "manual review required")
		ex.decisionPath = PathManualReviewWarning
		ex.postReviewFlow(ctx, "This pull request requires manual review: the automated risk pre-check found too many high-risk signals to safely delegate to the AI reviewer.")
		return
	}

	ex.transition(fsm.AIApproved, gate.Reason)
	ex.transition(fsm.AIReviewPending, "approved for AI review")
	ex.checkInvariants(invariant.Context{
		CurrentState:     ptrState(ex.machine.Current()),
		AboutToInvokeLLM: ptrBool(true),
	})
	ex.transition(fsm.AIInvoked, "invoking LLM")
	ex.aiInvoked = true

	diffSummary := summarizeDiff(filtered)
	result := ex.o.collaborator.GenerateReview(ctx, diffSummary, bundle)
	ex.o.singletons.Metrics.IncrLLMInvocation()

	if result.FallbackUsed {
		ex.fallbackUsed = true
		if result.FallbackReason != nil {
			ex.fallbackReasonStr = result.FallbackReason.Trigger + ": " + result.FallbackReason.Details
		}
		ex.o.singletons.Metrics.IncrLLMFallback()
		ex.transition(fsm.FallbackPending, "falling back")
		ex.transition(fsm.FallbackGenerated, "fallback review generated")
		ex.transition(fsm.ReviewReady, "fallback ready")
		if result.FallbackReason != nil && result.FallbackReason.Trigger == "quality_rejection" {
			ex.decisionPath = PathAIFallbackQuality
		} else {
			ex.decisionPath = PathAIFallbackError
		}
	} else {
		ex.transition(fsm.AIResponded, "LLM responded")
		ex.transition(fsm.AIValidated, "reply validated")
		ex.transition(fsm.ReviewReady, "review ready")
		ex.decisionPath = PathAIReview
	}

	v := string(result.Output.Verdict)
	ex.verdict = &v
	ex.risksCount = len(result.Output.Risks)

	ex.postReviewFlow(ctx, result.Output.String())
}

// postReviewFlow runs the common REVIEW_READY -> COMMENT_* -> terminal
// tail shared by the manual-review-warning and AI-reviewed paths.
func (ex *execution) postReviewFlow(ctx context.Context, body string) {
	ex.transition(fsm.CommentPending, "posting comment")
	ex.checkInvariants(invariant.Context{
		CurrentState:       ptrState(ex.machine.Current()),
		AboutToPostComment: ptrBool(true),
		DecisionPath:       ptrString(ex.decisionPath),
		FallbackUsed:       ptrBool(ex.fallbackUsed),
		FallbackReason:     ptrString(ex.fallbackReasonStr),
	})

	err := ex.publishComment(ctx, body)
	if err != nil {
		ex.transition(fsm.CommentFailed, "publish failed: "+err.Error())
		ex.transition(fsm.CompletedWarning, "comment failed")
		return
	}
	ex.transition(fsm.CommentPosted, "comment posted")
	ex.commentPosted = true

	switch ex.decisionPath {
	case PathAIReview:
		ex.transition(fsm.CompletedSuccess, "ai review delivered")
	default:
		// manual_review_warning, ai_fallback_quality, ai_fallback_error:
		// the comment was delivered but the path itself signals a
		// degraded or attention-needed outcome.
		ex.transition(fsm.CompletedWarning, "delivered with a warning")
	}
}

func (ex *execution) extractDiff(ctx context.Context) ([]precheck.DiffFile, error) {
	if ex.maybeInject(fault.DiffExtractionFail) {
		return nil, fmt.Errorf("diff extraction fault injected")
	}
	if ex.o.diff == nil {
		return nil, fmt.Errorf("no diff extractor configured")
	}
	return ex.o.diff.ExtractDiff(ctx, ex.ec)
}

func (ex *execution) publishComment(ctx context.Context, body string) error {
	if ex.maybeInject(fault.PublishCommentFailure) {
		return fmt.Errorf("publish comment fault injected")
	}
	if ex.o.publisher == nil {
		return fmt.Errorf("no comment publisher configured")
	}
	return ex.o.publisher.PublishComment(ctx, ex.ec, body)
}

// publishBestEffort is used on the diff-extract-fail path: the comment
// is best-effort (its failure is not itself a terminal-state change,
// since the execution already ended in ABORTED_ERROR).
func (ex *execution) publishBestEffort(ctx context.Context, body string) {
	if ex.o.publisher == nil {
		return
	}
	_ = ex.o.publisher.PublishComment(ctx, ex.ec, body)
}

func forceManualReview(b *precheck.Bundle, highThreshold int) {
	if b.HighCount <= highThreshold {
		b.HighCount = highThreshold + 1
	}
	b.CriticalCategories = append(b.CriticalCategories, precheck.CategoryCriticalPath)
}

func categoriesToStrings(cats []precheck.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

func summarizeDiff(files []precheck.DiffFile) string {
	summary := ""
	for _, f := range files {
		summary += fmt.Sprintf("%s (+/-%d lines)\n", f.Path, f.ChangedLines)
	}
	return summary
}

// finalize evaluates postconditions, assembles the decision record,
// seals it with a proof hash, appends it to the ledger and Merkle
// index, and records it to history — spec.md §4.12's assembly order.
func (ex *execution) finalize(ctx context.Context) {
	finalState, _ := ex.machine.FinalStateOrNone()
	if finalState == "" {
		ex.machine.SafeTransition(fsm.AbortedFatal, "execution ended without reaching a terminal state")
		finalState, _ = ex.machine.FinalStateOrNone()
		ex.decisionPath = PathErrorAborted
	}

	visited := ex.machine.VisitedStates()
	history := ex.machine.History()

	pcReport := postcondition.Evaluate(postcondition.TerminalContext{
		FinalState:       finalState,
		IsTerminal:       ex.machine.IsTerminal(),
		DecisionPath:     ex.decisionPath,
		CommentPosted:    ex.commentPosted,
		Verdict:          ex.verdict,
		AIInvoked:        ex.aiInvoked,
		AIBlocked:        ex.aiBlocked,
		FallbackUsed:     ex.fallbackUsed,
		FallbackReason:   ex.fallbackReasonStr,
		StateTransitions: len(history),
		VisitedStates:    visited,
		RisksCount:       ex.risksCount,
	})

	invSummary := invariant.Summarize(ex.invViolations)
	formallyValid := invSummary.Fatal == 0 && invSummary.Error == 0 && !pcReport.FatalOrErrorAny

	decisionWriteFault := ex.maybeInject(fault.DecisionWriteFailure)
	metricsWriteFault := ex.maybeInject(fault.MetricsWriteFailure)

	faultCodes := make([]string, len(ex.faultsInjected))
	for i, c := range ex.faultsInjected {
		faultCodes[i] = string(c)
	}

	rec := decision.Record{
		ReviewID:  ex.reviewID,
		Timestamp: ex.startedAt,
		PR:        decision.PRCoordinates{Owner: ex.ec.Owner, Repo: ex.ec.Repo, PRNumber: ex.ec.PRNumber},

		DecisionPath:   ex.decisionPath,
		GateReason:     ex.gateReason,
		AIInvoked:      ex.aiInvoked,
		AIBlocked:      ex.aiBlocked,
		FallbackUsed:   ex.fallbackUsed,
		FallbackReason: ex.fallbackReasonStr,

		PrecheckSummary:  ex.precheckSum,
		Verdict:          ex.verdict,
		CommentPosted:    ex.commentPosted,
		ProcessingTimeMS: time.Since(ex.startedAt).Milliseconds(),
		InstanceMode:     ex.o.singletons.InstanceMode,
		FaultsInjected:   faultCodes,

		InvariantSummary: invSummary,

		StateTransitions: history,
		FinalState:       finalState,

		PostconditionSummary: pcReport,
		FormallyValid:        formallyValid,

		ContractVersion: ex.o.singletons.Contract.Version,
		ContractHash:    ex.o.singletons.Contract.Hash,
	}

	fp := attestation.FingerprintFromRecord(rec)
	rec.ExecutionProofHash = attestation.ComputeProofHash(fp)

	entry := ex.o.singletons.Ledger.Append(rec.ReviewID, rec.ExecutionProofHash, rec.Timestamp)
	rec.LedgerHash = entry.LedgerHash
	rec.PreviousLedgerHash = entry.PreviousHash

	ex.o.singletons.MerkleIndex.Append(rec.ReviewID, rec.ExecutionProofHash)

	if decisionWriteFault {
		ex.o.logger.Warn("decision write fault injected, history append skipped", "review_id", rec.ReviewID)
	} else {
		ex.o.singletons.History.Append(ctx, rec)
	}

	if metricsWriteFault {
		ex.o.logger.Warn("metrics write fault injected", "review_id", rec.ReviewID)
	} else {
		ex.o.singletons.Metrics.IncrDecisionPath(ex.decisionPath)
	}
}
