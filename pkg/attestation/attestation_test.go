package attestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealedreview/reviewpipeline/pkg/decision"
	"github.com/sealedreview/reviewpipeline/pkg/fsm"
	"github.com/sealedreview/reviewpipeline/pkg/invariant"
	"github.com/sealedreview/reviewpipeline/pkg/postcondition"
)

func sampleRecord() decision.Record {
	return decision.Record{
		ReviewID:  "r-1",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PR:        decision.PRCoordinates{Owner: "acme", Repo: "widgets", PRNumber: 42},

		DecisionPath: "ai_reviewed",
		FinalState:   fsm.CompletedSuccess,
		StateTransitions: []fsm.Transition{
			{From: fsm.Received, To: fsm.DiffExtractionPending},
		},
		InvariantSummary:     invariant.Summary{Total: 14},
		PostconditionSummary: postcondition.Report{TotalChecked: 14, Passed: true},
		FormallyValid:        true,
		ContractVersion:      "1.0.0",
		ContractHash:         "deadbeefdeadbeef",
	}
}

func TestComputeProofHash_StableAcrossRepeatedCalls(t *testing.T) {
	fp := FingerprintFromRecord(sampleRecord())
	h1 := ComputeProofHash(fp)
	h2 := ComputeProofHash(fp)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
}

func TestComputeProofHash_ChangesWithFinalState(t *testing.T) {
	fp1 := FingerprintFromRecord(sampleRecord())
	rec2 := sampleRecord()
	rec2.FinalState = fsm.CompletedWarning
	fp2 := FingerprintFromRecord(rec2)

	assert.NotEqual(t, ComputeProofHash(fp1), ComputeProofHash(fp2))
}

func TestVerifyExecutionProof_RoundTrips(t *testing.T) {
	rec := sampleRecord()
	rec.ExecutionProofHash = ComputeProofHash(FingerprintFromRecord(rec))

	ok, err := VerifyExecutionProof(rec)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyExecutionProof_DetectsTamper(t *testing.T) {
	rec := sampleRecord()
	rec.ExecutionProofHash = ComputeProofHash(FingerprintFromRecord(rec))
	rec.FinalState = fsm.CompletedWarning // tampered after sealing

	ok, err := VerifyExecutionProof(rec)
	assert.False(t, ok)
	require.Error(t, err)
	var mismatch *VerificationFailure
	assert.ErrorAs(t, err, &mismatch)
}

func TestLedger_FirstEntryChainsToGenesis(t *testing.T) {
	l := NewLedger()
	e := l.Append("r-1", "proofhash1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, GenesisHash, e.PreviousHash)
	assert.NotEmpty(t, e.LedgerHash)
}

func TestLedger_SubsequentEntryChainsToPrevious(t *testing.T) {
	l := NewLedger()
	e1 := l.Append("r-1", "proofhash1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	e2 := l.Append("r-2", "proofhash2", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))

	assert.Equal(t, e1.LedgerHash, e2.PreviousHash)
}

func TestVerifyChain_ValidChainPasses(t *testing.T) {
	l := NewLedger()
	l.Append("r-1", "proofhash1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l.Append("r-2", "proofhash2", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
	l.Append("r-3", "proofhash3", time.Date(2026, 1, 1, 0, 2, 0, 0, time.UTC))

	require.NoError(t, VerifyChain(l.Entries()))
}

func TestVerifyChain_DetectsTamperedLink(t *testing.T) {
	l := NewLedger()
	l.Append("r-1", "proofhash1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l.Append("r-2", "proofhash2", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))

	entries := l.Entries()
	entries[1].ProofHash = "tampered"

	err := VerifyChain(entries)
	require.Error(t, err)
	var broken *BrokenChainError
	assert.ErrorAs(t, err, &broken)
	assert.Equal(t, 1, broken.Index)
}

func TestVerifyChain_EmptyChainIsValid(t *testing.T) {
	assert.NoError(t, VerifyChain(nil))
}

func TestLedger_LenAndEntriesReflectAppends(t *testing.T) {
	l := NewLedger()
	assert.Equal(t, 0, l.Len())
	l.Append("r-1", "p1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l.Append("r-2", "p2", time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
	assert.Equal(t, 2, l.Len())
	assert.Len(t, l.Entries(), 2)
}
